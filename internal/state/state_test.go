package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smartsoil/smartsoil/internal/crypto"
	"github.com/smartsoil/smartsoil/internal/dashboard"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func result(weeks int) *models.AnalysisResult {
	r := &models.AnalysisResult{Location: "Tashkent", Crop: "Cotton"}
	for i := range weeks {
		r.MonthlySchedule = append(r.MonthlySchedule, models.MonthlyWeek{Week: fmt.Sprintf("Week %d", i+1)})
	}
	return r
}

func TestNewState(t *testing.T) {
	s := New("abc", i18n.Uzbek)
	assert.Equal(t, i18n.Uzbek, s.Language)
	assert.Equal(t, dashboard.TabWeekly, s.Tab)
	assert.False(t, s.Loading)
	assert.False(t, s.ShowDashboard())
	assert.False(t, s.Solid)
}

func TestBeginResolve(t *testing.T) {
	s := New("abc", i18n.English)
	s.Error = ErrorTransport

	token := s.Begin(models.FieldInput{Location: "Tashkent", Crop: "Cotton"})
	assert.NotEmpty(t, token)
	assert.True(t, s.Loading)
	assert.Equal(t, ErrorNone, s.Error)
	assert.True(t, s.Solid)

	r := result(4)
	require.NoError(t, s.Resolve(token, r, []models.GroundingSource{{URI: "https://a.uz"}}))
	assert.False(t, s.Loading)
	assert.True(t, s.ShowDashboard())
	assert.Len(t, s.Sources, 1)
}

func TestBeginClearsPreviousResult(t *testing.T) {
	s := New("abc", i18n.English)
	require.NoError(t, s.Resolve(s.Begin(models.FieldInput{}), result(4), nil))
	week := 2
	s.Expanded = &week
	s.Tab = dashboard.TabMonthly

	s.Begin(models.FieldInput{Location: "Fergana", Crop: "Wheat"})
	assert.Nil(t, s.Result)
	assert.Nil(t, s.Sources)
	assert.Nil(t, s.Expanded)
	assert.Equal(t, dashboard.TabWeekly, s.Tab)
}

func TestStaleResponseIsDropped(t *testing.T) {
	s := New("abc", i18n.English)
	first := s.Begin(models.FieldInput{Location: "A", Crop: "B"})
	second := s.Begin(models.FieldInput{Location: "C", Crop: "D"})

	err := s.Resolve(first, result(4), nil)
	assert.ErrorIs(t, err, ErrStaleRequest)
	assert.True(t, s.Loading)
	assert.Nil(t, s.Result)

	require.NoError(t, s.Fail(second, ErrorExtraction))
	assert.False(t, s.Loading)
	assert.Equal(t, ErrorExtraction, s.Error)

	assert.ErrorIs(t, s.Fail(second, ErrorTransport), ErrStaleRequest)
}

func TestTakeError(t *testing.T) {
	s := New("abc", i18n.English)
	token := s.Begin(models.FieldInput{Location: "A", Crop: "B"})
	require.NoError(t, s.Fail(token, ErrorTransport))

	assert.Equal(t, ErrorTransport, s.TakeError())
	assert.Equal(t, ErrorNone, s.TakeError())
	assert.False(t, s.Loading)
}

func TestAbandonStalledRequest(t *testing.T) {
	s := New("abc", i18n.English)
	now := time.Now()
	assert.False(t, s.Abandon(now, time.Minute), "nothing pending")

	token := s.Begin(models.FieldInput{Location: "A", Crop: "B"})
	assert.False(t, s.Stalled(now, time.Minute))
	assert.False(t, s.Abandon(now, time.Minute))
	assert.True(t, s.Loading)

	later := now.Add(2 * time.Minute)
	assert.True(t, s.Stalled(later, time.Minute))
	assert.True(t, s.Abandon(later, time.Minute))
	assert.False(t, s.Loading)
	assert.True(t, s.StartedAt.IsZero())
	assert.Equal(t, ErrorTransport, s.Error)

	assert.ErrorIs(t, s.Resolve(token, result(4), nil), ErrStaleRequest, "late result must not land")
	assert.Nil(t, s.Result)
}

func TestToggleWeek(t *testing.T) {
	s := New("abc", i18n.English)
	assert.ErrorIs(t, s.ToggleWeek(0), ErrNoResult)

	require.NoError(t, s.Resolve(s.Begin(models.FieldInput{}), result(4), nil))

	require.NoError(t, s.ToggleWeek(1))
	require.NotNil(t, s.Expanded)
	assert.Equal(t, 1, *s.Expanded)

	require.NoError(t, s.ToggleWeek(3))
	assert.Equal(t, 3, *s.Expanded)

	require.NoError(t, s.ToggleWeek(3))
	assert.Nil(t, s.Expanded)

	assert.ErrorIs(t, s.ToggleWeek(4), ErrWeekOutOfRange)
	assert.ErrorIs(t, s.ToggleWeek(-1), ErrWeekOutOfRange)
}

func TestSetTabAndLanguage(t *testing.T) {
	s := New("abc", i18n.English)
	require.NoError(t, s.SetTab(dashboard.TabMonthly))
	assert.Equal(t, dashboard.TabMonthly, s.Tab)
	assert.ErrorIs(t, s.SetTab("yearly"), ErrUnknownTab)

	require.NoError(t, s.SetLanguage(i18n.Russian))
	assert.Equal(t, i18n.Russian, s.Language)
	assert.ErrorIs(t, s.SetLanguage("de"), i18n.ErrUnsupportedLanguage)
	assert.Equal(t, i18n.Russian, s.Language)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorNone, ClassifyError(nil))
	assert.Equal(t, ErrorExtraction, ClassifyError(fmt.Errorf("decode: %w", models.ErrMalformedOutput)))
	assert.Equal(t, ErrorTransport, ClassifyError(errors.New("connection reset")))
	assert.Equal(t, ErrorTransport, ClassifyError(context.DeadlineExceeded))
}

// testStoreContract exercises the behavior every Store must share.
func testStoreContract(t *testing.T, store Store, id string) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrStateNotFound)
	_, err = store.Update(ctx, id, func(*AppState) error { return nil })
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, store.Save(ctx, New(id, i18n.English)))

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	loaded.Language = i18n.Russian
	again, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, i18n.English, again.Language, "loaded copies must not alias stored state")

	var token string
	_, err = store.Update(ctx, id, func(s *AppState) error {
		token = s.Begin(models.FieldInput{Location: "Tashkent", Crop: "Cotton"})
		return nil
	})
	require.NoError(t, err)

	got, err := store.Update(ctx, id, func(s *AppState) error {
		return s.Resolve(token, result(4), []models.GroundingSource{{URI: "https://a.uz"}})
	})
	require.NoError(t, err)
	assert.True(t, got.ShowDashboard())
	assert.False(t, got.Loading)

	updated, err := store.Update(ctx, id, func(s *AppState) error {
		return s.SetTab(dashboard.TabMonthly)
	})
	require.NoError(t, err)
	assert.Equal(t, dashboard.TabMonthly, updated.Tab)

	_, err = store.Update(ctx, id, func(s *AppState) error {
		s.Tab = dashboard.TabWeekly
		return ErrNoResult
	})
	assert.ErrorIs(t, err, ErrNoResult)

	final, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, dashboard.TabMonthly, final.Tab, "failed update must not be written")
	assert.Equal(t, "Tashkent", final.Result.Location)
	assert.Len(t, final.Result.MonthlySchedule, 4)
	assert.Len(t, final.Sources, 1)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore(time.Hour), "abc")
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	s := New("old", i18n.English)
	s.UpdatedAt = now.Add(-2 * time.Minute)
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Save(ctx, New("fresh", i18n.English)))

	assert.Equal(t, 1, store.Sweep())
	_, err := store.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrStateNotFound)
	_, err = store.Load(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	s := New("abc", i18n.English)
	require.NoError(t, s.Resolve(s.Begin(models.FieldInput{}), result(4), nil))
	require.NoError(t, store.Save(ctx, s))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "abc", func(s *AppState) error {
				return s.ToggleWeek(0)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, final.Expanded, "an even number of toggles leaves the week collapsed")
}

func TestRunSweeperStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryStore(time.Minute)
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	<-done
}

// redisClient connects to SMARTSOIL_TEST_REDIS_URL when set and to an
// in-process miniredis otherwise. The second result is nil for a real server.
func redisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	addr := os.Getenv("SMARTSOIL_TEST_REDIS_URL")
	var mr *miniredis.Miniredis
	if addr == "" {
		mr = miniredis.RunT(t)
		addr = mr.Addr()
	}
	client, err := ConnectRedis(context.Background(), addr, 2)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client, _ := redisClient(t)

	id := NewID()
	defer client.Del(ctx, redisKey(id))

	testStoreContract(t, NewRedisStore(client, time.Minute), id)

	ttl, err := client.TTL(ctx, redisKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "every write refreshes the expiry")
}

func TestRedisStoreSealed(t *testing.T) {
	ctx := context.Background()
	client, _ := redisClient(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sealer, err := crypto.NewSealer(key)
	require.NoError(t, err)

	id := NewID()
	defer client.Del(ctx, redisKey(id))

	testStoreContract(t, NewRedisStore(client, time.Minute).WithSealer(sealer), id)

	raw, err := client.Get(ctx, redisKey(id)).Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Tashkent")

	_, err = NewRedisStore(client, time.Minute).Load(ctx, id)
	assert.Error(t, err, "sealed values must not decode without the key")
}

func TestRedisStoreExpiry(t *testing.T) {
	client, mr := redisClient(t)
	if mr == nil {
		t.Skip("expiry needs a controllable clock")
	}
	ctx := context.Background()
	store := NewRedisStore(client, time.Minute)

	s := New(NewID(), i18n.English)
	require.NoError(t, store.Save(ctx, s))

	mr.FastForward(30 * time.Second)
	_, err := store.Load(ctx, s.ID)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	_, err = store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStoreConcurrentUpdates(t *testing.T) {
	client, _ := redisClient(t)
	ctx := context.Background()
	store := NewRedisStore(client, time.Minute)

	s := New(NewID(), i18n.English)
	require.NoError(t, store.Save(ctx, s))
	defer client.Del(ctx, redisKey(s.ID))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, s.ID, func(st *AppState) error {
				st.Begin(models.FieldInput{Location: "A", Crop: "B"})
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Loading)
	assert.NotEmpty(t, got.Token)
}

func TestConnectRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), addr, 1)
	assert.Error(t, err)
}

func TestConnectRedisBadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "redis://:bad:port/x", 0)
	assert.ErrorContains(t, err, "parse redis url")
}
