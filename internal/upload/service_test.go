package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsosee/media-gateway/internal/github"
	"github.com/alsosee/media-gateway/internal/storage"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.err
}

func (f *fakeDispatcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type failingStore struct{ err error }

func (f failingStore) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	return f.err
}

type panicStore struct{}

func (panicStore) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	panic("boom")
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []string
	kinds  []string
}

func (o *recordingObserver) ObserveStage(stage string, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *recordingObserver) ObserveResult(kind string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, kind)
}

func putRequest(key, body string) UploadRequest {
	return UploadRequest{Method: http.MethodPut, Key: key, Body: strings.NewReader(body), Size: int64(len(body))}
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		kind Kind
	}{
		{"percent", "People%2FJohn%20Doe.jpg", "People/John Doe.jpg", ""},
		{"plus preservado", "a+b.png", "a+b.png", ""},
		{"unicode", "Caf%C3%A9.jpg", "Café.jpg", ""},
		{"vazio", "", "", KindMissingKey},
		{"malformado", "bad%zz", "", KindInternalError},
		{"utf-8 invalido", "a%FF.jpg", "", KindInternalError},
		{"sequencia truncada", "Caf%C3.jpg", "", KindInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := DecodeKey(tc.raw)
			if tc.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.kind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, key)
		})
	}
}

func TestServiceUploadSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	dispatcher := &fakeDispatcher{}
	obs := &recordingObserver{}
	svc := NewService(Deps{Store: store, Dispatcher: dispatcher, Observer: obs}, DefaultOptions())

	result, err := svc.Upload(context.Background(), putRequest("People/John Doe.jpg", "jpeg"))
	require.NoError(t, err)
	assert.Equal(t, OperationResult{Status: StatusOK, Key: "People/John Doe.jpg"}, result)

	data, err := store.Get("People/John Doe.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, []string{"People/John Doe.jpg"}, dispatcher.calls())
	assert.Equal(t, []string{StagePersist, StageDispatch}, obs.stages)
	assert.Equal(t, []string{""}, obs.kinds)
}

func TestServiceUploadShortCircuits(t *testing.T) {
	tests := []struct {
		name         string
		deps         func(*storage.MemoryStore, *fakeDispatcher) Deps
		req          UploadRequest
		kind         Kind
		wantPuts     int
		wantDispatch int
	}{
		{
			name: "metodo",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps { return Deps{Store: s, Dispatcher: d} },
			req:  UploadRequest{Method: http.MethodPost, Key: "a.jpg", Body: strings.NewReader("x")},
			kind: KindMethodNotAllowed,
		},
		{
			name: "chave",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps { return Deps{Store: s, Dispatcher: d} },
			req:  putRequest("", "x"),
			kind: KindMissingKey,
		},
		{
			name: "credencial",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps { return Deps{Store: s} },
			req:  putRequest("a.jpg", "x"),
			kind: KindMissingCredential,
		},
		{
			name: "bucket",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps {
				return Deps{Store: failingStore{err: errors.New("disk full")}, Dispatcher: d}
			},
			req:  putRequest("a.jpg", "x"),
			kind: KindInternalError,
		},
		{
			name: "sem backend",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps { return Deps{Dispatcher: d} },
			req:  putRequest("a.jpg", "x"),
			kind: KindInternalError,
		},
		{
			name: "relay",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps {
				return Deps{Relay: failingStore{err: &storage.RelayError{StatusCode: 500, Body: "nope"}}, Dispatcher: d}
			},
			req:  putRequest("a.jpg", "x"),
			kind: KindRelayFailure,
		},
		{
			name: "dispatch",
			deps: func(s *storage.MemoryStore, d *fakeDispatcher) Deps {
				d.err = &github.StatusError{StatusCode: 422}
				return Deps{Store: s, Dispatcher: d}
			},
			req:          putRequest("a.jpg", "x"),
			kind:         KindDispatchFailure,
			wantPuts:     1,
			wantDispatch: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			dispatcher := &fakeDispatcher{}
			svc := NewService(tc.deps(store, dispatcher), DefaultOptions())

			result, err := svc.Upload(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, StatusError, result.Status)
			assert.Equal(t, tc.wantPuts, store.Puts())
			assert.Len(t, dispatcher.calls(), tc.wantDispatch)
		})
	}
}

func TestServiceUploadOptions(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(Deps{Store: store}, Options{CheckCredential: true, Dispatch: false, RelayFallback: true})

	result, err := svc.Upload(context.Background(), putRequest("a.jpg", "x"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, 1, store.Puts())

	relay := storage.NewMemoryStore()
	svc = NewService(Deps{Relay: relay, Dispatcher: &fakeDispatcher{}}, Options{CheckCredential: true, Dispatch: true})
	_, err = svc.Upload(context.Background(), putRequest("a.jpg", "x"))
	assert.Equal(t, KindInternalError, KindOf(err))
	assert.Zero(t, relay.Puts())
}

func TestServiceUploadDispatchTransportError(t *testing.T) {
	svc := NewService(Deps{Store: storage.NewMemoryStore(), Dispatcher: &fakeDispatcher{err: errors.New("connection refused")}}, DefaultOptions())

	_, err := svc.Upload(context.Background(), putRequest("a.jpg", "x"))
	require.Error(t, err)
	assert.Equal(t, KindDispatchFailure, KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestServiceUploadRecoversPanic(t *testing.T) {
	svc := NewService(Deps{Store: panicStore{}, Dispatcher: &fakeDispatcher{}}, DefaultOptions())

	result, err := svc.Upload(context.Background(), putRequest("a.jpg", "x"))
	require.Error(t, err)
	assert.Equal(t, KindInternalError, KindOf(err))
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StatusError, result.Status)
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusMethodNotAllowed, newError(KindMethodNotAllowed, "", nil).Status())
	assert.Equal(t, http.StatusBadRequest, newError(KindMissingKey, "", nil).Status())
	for _, kind := range []Kind{KindMissingCredential, KindRelayFailure, KindDispatchFailure, KindInternalError} {
		assert.Equal(t, http.StatusInternalServerError, newError(kind, "", nil).Status())
	}
	assert.Equal(t, KindInternalError, KindOf(errors.New("qualquer")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
