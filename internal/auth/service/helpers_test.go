package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer        = "crm-auth"
	testAccessSecret  = "access-secret-for-tests-0001"
	testRefreshSecret = "refresh-secret-for-tests-0002"
	testJWESecret     = "encryption-secret-for-tests-0003"
	testPassword      = "Sales2024!"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type testEnv struct {
	store     *sqlite.Store
	auth      *AuthService
	employees *EmployeeService
	ledger    *SessionLedger
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func testCodecs(t *testing.T) Codecs {
	t.Helper()

	access, err := jwtx.NewHS256Codec([]byte(testAccessSecret), testIssuer)
	require.NoError(t, err)
	refresh, err := jwtx.NewHS256Codec([]byte(testRefreshSecret), testIssuer)
	require.NoError(t, err)
	enc, err := jwtx.NewJWECodec([]byte(testJWESecret), testIssuer)
	require.NoError(t, err)

	privPEM, _, err := cryptox.GenerateRSAKeyPKCS8(2048)
	require.NoError(t, err)
	signed, err := jwtx.NewRS256Codec("crm-rs256-1", privPEM, testIssuer)
	require.NoError(t, err)

	return Codecs{Access: access, Signed: signed, Encrypted: enc, Refresh: refresh}
}

func newTestEnv(t *testing.T, opts AuthOptions) *testEnv {
	t.Helper()

	s := newTestStore(t)
	if opts.Issuer == "" {
		opts.Issuer = testIssuer
	}
	ledger := NewSessionLedger(s)
	auth, err := NewAuthService(s, testCodecs(t), ledger, NewLoginGuard(s, 0), NewAuditor(s, 0), opts)
	require.NoError(t, err)

	return &testEnv{
		store:     s,
		auth:      auth,
		employees: &EmployeeService{Store: s},
		ledger:    ledger,
	}
}

func (e *testEnv) seed(t *testing.T, email, title string, role domain.Role) domain.Employee {
	t.Helper()
	emp, err := e.employees.Create(context.Background(), NewEmployee{
		Email:     email,
		FirstName: "Alex",
		LastName:  "Rivera",
		Title:     title,
		Role:      role,
		Password:  testPassword,
	})
	require.NoError(t, err)
	return emp
}

var testClient = domain.ClientInfo{IPAddress: "192.0.2.10", UserAgent: "go-test"}

// fixedClock returns a clock the test can move.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}
