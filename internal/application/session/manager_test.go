package session

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/domain/shared"
	"github.com/campusfin/client/internal/infrastructure/backend"
	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/campusfin/client/internal/infrastructure/event"
	"github.com/campusfin/client/internal/infrastructure/httpclient"
	"github.com/campusfin/client/internal/infrastructure/metrics"
	"github.com/campusfin/client/internal/infrastructure/tokenstore"
	"github.com/campusfin/client/internal/testutil/fakebackend"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (l *eventLog) record(_ context.Context, e shared.DomainEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.EventType())
	return nil
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.types...)
}

type harness struct {
	fb      *fakebackend.Server
	client  *httpclient.Client
	manager *Manager
	store   TokenStore
	events  *eventLog
	metrics *metrics.Recorder
}

func newHarness(t *testing.T, store TokenStore) *harness {
	t.Helper()
	fb := fakebackend.New(t)
	h := &harness{fb: fb, store: store, events: &eventLog{}, metrics: metrics.NewRecorder()}

	client, err := httpclient.New(config.APIConfig{BaseURL: fb.URL(), Timeout: 5 * time.Second},
		httpclient.WithTokenSource(httpclient.TokenFunc(func() string { return h.manager.Token() })),
		httpclient.WithUnauthorizedHandler(func(ctx context.Context) { h.manager.HandleUnauthorized(ctx) }),
	)
	require.NoError(t, err)
	h.client = client

	bus := event.NewInMemoryEventBus(nil)
	bus.Subscribe(event.NewFuncHandler(h.events.record))

	h.manager = NewManager(backend.New(client), store,
		WithEventPublisher(bus),
		WithMetrics(h.metrics),
	)
	return h
}

func TestManager_StartWithoutToken(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())

	require.NoError(t, h.manager.Start(context.Background()))

	assert.Equal(t, identity.StatusUnauthenticated, h.manager.Status())
	assert.Equal(t, 0, h.fb.Hits("GET /auth/me"))
	assert.Empty(t, h.events.all())
}

func TestManager_StartRevalidatesPersistedToken(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	h := newHarness(t, store)
	user := h.fb.AddUser("faculty@example.edu", "secret123", identity.RoleFaculty)
	require.NoError(t, store.Save(context.Background(), h.fb.Token(user.Email)))

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	assert.True(t, snap.IsAuthenticated())
	require.NotNil(t, snap.User)
	assert.Equal(t, user.ID, snap.User.ID)
	assert.Equal(t, []string{identity.EventTypeRevalidated}, h.events.all())
}

func TestManager_StartWithRevokedToken(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	h := newHarness(t, store)
	h.fb.AddUser("student@example.edu", "secret123", identity.RoleStudent)
	token := h.fb.Token("student@example.edu")
	h.fb.Revoke(token)
	require.NoError(t, store.Save(context.Background(), token))
	genBefore := h.manager.Generation()

	err := h.manager.Start(context.Background())

	assert.ErrorIs(t, err, shared.ErrSessionExpired)
	assert.Equal(t, identity.StatusUnauthenticated, h.manager.Status())
	assert.Empty(t, h.manager.Token())
	persisted, _ := store.Load(context.Background())
	assert.Empty(t, persisted)
	assert.Greater(t, h.manager.Generation(), genBefore)
	// the 401 hook and the failed revalidation must not expire twice
	assert.Equal(t, []string{identity.EventTypeSessionExpired}, h.events.all())
}

func TestManager_StartWithExpiredTokenSkipsBackend(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	h := newHarness(t, store)
	h.fb.AddUser("student@example.edu", "secret123", identity.RoleStudent)
	require.NoError(t, store.Save(context.Background(), h.fb.ExpiredToken("student@example.edu")))

	err := h.manager.Start(context.Background())

	assert.ErrorIs(t, err, shared.ErrSessionExpired)
	assert.Equal(t, 0, h.fb.Hits("GET /auth/me"))
	persisted, _ := store.Load(context.Background())
	assert.Empty(t, persisted)
}

func TestManager_LoginSuccess(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	h := newHarness(t, store)
	admin := h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	genBefore := h.manager.Generation()

	snap, err := h.manager.Login(context.Background(), " admin@example.edu ", "adminpass")
	require.NoError(t, err)

	assert.True(t, snap.IsAuthenticated())
	require.NotNil(t, snap.User)
	assert.Equal(t, admin.ID, snap.User.ID)
	assert.Equal(t, []string{identity.RoleAdmin}, snap.User.RoleNames())
	assert.Greater(t, h.manager.Generation(), genBefore)

	persisted, _ := store.Load(context.Background())
	assert.Equal(t, snap.Token, persisted)
	assert.Empty(t, h.manager.LastError())
	assert.Equal(t, []string{identity.EventTypeLoggedIn}, h.events.all())
}

func TestManager_LoginSendsTrimmedEmail(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	usernames := make(chan string, 1)
	h.fb.Hook("POST /auth/login", func(c *gin.Context) {
		usernames <- c.PostForm("username")
	})

	_, err := h.manager.Login(context.Background(), "\tadmin@example.edu  ", "adminpass")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.edu", <-usernames)
}

func TestManager_LoginRejected(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(fb *fakebackend.Server)
		password string
		detail   string
	}{
		{
			name:     "wrong password",
			setup:    func(fb *fakebackend.Server) {},
			password: "nope",
			detail:   "Incorrect email or password",
		},
		{
			name:     "inactive user",
			setup:    func(fb *fakebackend.Server) { fb.DeactivateUser("student@example.edu") },
			password: "secret123",
			detail:   "Inactive user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tokenstore.NewMemoryStore()
			h := newHarness(t, store)
			h.fb.AddUser("student@example.edu", "secret123", identity.RoleStudent)
			tt.setup(h.fb)

			snap, err := h.manager.Login(context.Background(), "student@example.edu", tt.password)

			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrAuth)
			assert.Equal(t, tt.detail, err.Error())
			assert.Equal(t, tt.detail, h.manager.LastError())
			assert.Equal(t, identity.StatusUnauthenticated, snap.Status)
			assert.Equal(t, identity.StatusUnauthenticated, h.manager.Status())
			persisted, _ := store.Load(context.Background())
			assert.Empty(t, persisted)
			assert.Empty(t, h.events.all())

			h.manager.ClearError()
			assert.Empty(t, h.manager.LastError())
		})
	}
}

func TestManager_LoginRequiresCredentials(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())

	_, err := h.manager.Login(context.Background(), "   ", "")

	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "Email and password are required", h.manager.LastError())
	assert.NotContains(t, h.manager.LastError(), "username")
	assert.Equal(t, 0, h.fb.Hits("POST /auth/login"))
}

func TestManager_LoginServerError(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	h.fb.Hook("POST /auth/login", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusBadGateway)
	})

	_, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")

	assert.ErrorIs(t, err, shared.ErrNetwork)
	assert.NotErrorIs(t, err, shared.ErrAuth)
	assert.Equal(t, "Login failed", h.manager.LastError())
}

func TestManager_LoginProfileFetchFails(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	h.fb.Hook("GET /auth/me", func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "boom"})
	})

	snap, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")
	require.NoError(t, err)

	assert.True(t, snap.IsAuthenticated())
	assert.False(t, snap.HasProfile())
}

func TestManager_LogoutIsIdempotent(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	h := newHarness(t, store)
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	_, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")
	require.NoError(t, err)

	h.manager.Logout(context.Background())
	h.manager.Logout(context.Background())

	assert.Equal(t, identity.StatusUnauthenticated, h.manager.Status())
	assert.Nil(t, h.manager.Snapshot().User)
	persisted, _ := store.Load(context.Background())
	assert.Empty(t, persisted)
	assert.Equal(t, []string{identity.EventTypeLoggedIn, identity.EventTypeLoggedOut}, h.events.all())
}

func TestManager_UnauthorizedResponseEndsSession(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	h := newHarness(t, store)
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	h.fb.SeedSemesters(2)
	snap, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")
	require.NoError(t, err)

	h.fb.Revoke(snap.Token)
	var out []map[string]any
	err = h.client.Get(context.Background(), "/finance/semesters", nil, &out)

	assert.ErrorIs(t, err, shared.ErrNetwork)
	assert.Equal(t, identity.StatusUnauthenticated, h.manager.Status())
	persisted, _ := store.Load(context.Background())
	assert.Empty(t, persisted)
	assert.Equal(t, []string{identity.EventTypeLoggedIn, identity.EventTypeSessionExpired}, h.events.all())
}

func TestManager_ConcurrentUnauthorizedExpiresOnce(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)
	_, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() { h.manager.HandleUnauthorized(context.Background()) })
	}
	wg.Wait()

	assert.Equal(t, []string{identity.EventTypeLoggedIn, identity.EventTypeSessionExpired}, h.events.all())
}

type ttlStore struct {
	tokenstore.MemoryStore
	ttl time.Duration
}

func (s *ttlStore) SaveWithTTL(ctx context.Context, token string, ttl time.Duration) error {
	s.ttl = ttl
	return s.Save(ctx, token)
}

func TestManager_LoginUsesTokenExpiryForTTLStores(t *testing.T) {
	store := &ttlStore{}
	h := newHarness(t, store)
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)

	_, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")
	require.NoError(t, err)

	assert.Greater(t, store.ttl, 50*time.Minute)
	assert.LessOrEqual(t, store.ttl, time.Hour)
}

func TestManager_RecordsTransitions(t *testing.T) {
	h := newHarness(t, tokenstore.NewMemoryStore())
	h.fb.AddUser("admin@example.edu", "adminpass", identity.RoleAdmin)

	_, err := h.manager.Login(context.Background(), "admin@example.edu", "adminpass")
	require.NoError(t, err)
	h.manager.Logout(context.Background())

	families, err := h.metrics.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "campusfin_session_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["authenticated"])
	assert.Equal(t, 1.0, counts["unauthenticated"])
}

func TestManager_LogoutWithoutStartClearsStore(t *testing.T) {
	store := tokenstore.NewMemoryStoreWithToken("left-over")
	h := newHarness(t, store)

	h.manager.Logout(context.Background())

	persisted, _ := store.Load(context.Background())
	assert.Empty(t, persisted)
	assert.Empty(t, h.events.all())
}
