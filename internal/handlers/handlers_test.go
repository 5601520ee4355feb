package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/internal/notify"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// fakeUserRepo is an in-memory services.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return types.User{}, store.ErrDuplicateUser
	}
	user.JoinAt = time.Now()
	user.LastLoginAt = nil
	f.users[user.Username] = user
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) List(ctx context.Context) ([]types.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := make([]types.UserSummary, 0, len(f.users))
	for _, user := range f.users {
		summaries = append(summaries, user.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Username < summaries[j].Username
	})
	return summaries, nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, username string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return time.Time{}, store.ErrNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	f.users[username] = user
	return now, nil
}

// fakeMessageRepo is an in-memory services.MessageRepository sharing user
// data with a fakeUserRepo for joins and foreign-key checks.
type fakeMessageRepo struct {
	mu       sync.Mutex
	users    *fakeUserRepo
	messages map[int64]types.Message
	nextID   int64
}

func newFakeMessageRepo(users *fakeUserRepo) *fakeMessageRepo {
	return &fakeMessageRepo{
		users:    users,
		messages: make(map[int64]types.Message),
		nextID:   1,
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, message types.Message) (types.Message, error) {
	if _, err := f.users.GetByUsername(ctx, message.FromUsername); err != nil {
		return types.Message{}, store.ErrUnknownUser
	}
	if _, err := f.users.GetByUsername(ctx, message.ToUsername); err != nil {
		return types.Message{}, store.ErrUnknownUser
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	message.ID = f.nextID
	f.nextID++
	message.SentAt = time.Now()
	message.ReadAt = nil
	f.messages[message.ID] = message
	return message, nil
}

func (f *fakeMessageRepo) Get(ctx context.Context, id int64) (types.Message, error) {
	f.mu.Lock()
	message, ok := f.messages[id]
	f.mu.Unlock()
	if !ok {
		return types.Message{}, store.ErrNotFound
	}

	from, _ := f.users.GetByUsername(ctx, message.FromUsername)
	to, _ := f.users.GetByUsername(ctx, message.ToUsername)
	fromSummary := from.Summary()
	toSummary := to.Summary()

	return types.Message{
		ID:       message.ID,
		Body:     message.Body,
		SentAt:   message.SentAt,
		ReadAt:   message.ReadAt,
		FromUser: &fromSummary,
		ToUser:   &toSummary,
	}, nil
}

func (f *fakeMessageRepo) ListTo(ctx context.Context, username string) ([]types.Message, error) {
	return f.list(ctx, username, true)
}

func (f *fakeMessageRepo) ListFrom(ctx context.Context, username string) ([]types.Message, error) {
	return f.list(ctx, username, false)
}

func (f *fakeMessageRepo) list(ctx context.Context, username string, inbound bool) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	messages := make([]types.Message, 0)
	for _, message := range f.messages {
		var participant string
		if inbound {
			if message.ToUsername != username {
				continue
			}
			participant = message.FromUsername
		} else {
			if message.FromUsername != username {
				continue
			}
			participant = message.ToUsername
		}

		user := f.users.users[participant]
		summary := user.Summary()
		entry := types.Message{
			ID:     message.ID,
			Body:   message.Body,
			SentAt: message.SentAt,
			ReadAt: message.ReadAt,
		}
		if inbound {
			entry.FromUser = &summary
		} else {
			entry.ToUser = &summary
		}
		messages = append(messages, entry)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SentAt.After(messages[j].SentAt)
	})
	return messages, nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, id int64) (types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[id]
	if !ok {
		return types.Message{}, store.ErrNotFound
	}
	if message.ReadAt != nil {
		return types.Message{}, store.ErrAlreadyRead
	}
	now := time.Now()
	message.ReadAt = &now
	f.messages[id] = message
	return types.Message{ID: id, ReadAt: &now}, nil
}

// testEnv bundles a wired router and its backing fakes.
type testEnv struct {
	router   *chi.Mux
	users    *fakeUserRepo
	messages *fakeMessageRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := newFakeUserRepo()
	messageRepo := newFakeMessageRepo(userRepo)

	userService := services.NewUserService(userRepo)
	messageService := services.NewMessageService(messageRepo, notify.Noop{})
	authMiddleware := RequireAuth(testSecret)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, messageService, authMiddleware)
	})
	router.Route("/messages", func(r chi.Router) {
		MessageRouter(r, messageService, authMiddleware)
	})

	return &testEnv{
		router:   router,
		users:    userRepo,
		messages: messageRepo,
	}
}

// addUser seeds a user directly and returns a valid token for them.
func (e *testEnv) addUser(t *testing.T, username, password string) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := e.users.Create(context.Background(), types.User{
		Username:     username,
		FirstName:    "Test",
		LastName:     "Tester",
		Phone:        "+14155550000",
		PasswordHash: string(hashed),
	}); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}

	token, err := issueToken(username, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body *strings.Reader) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
