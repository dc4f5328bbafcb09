// Package auth implements local accounts and sessions on top of the query
// translator: sign-up with argon2id password hashes, sign-in issuing signed
// expiring tokens, and a single-slot session record kept in the host store
// next to, but outside of, the database image.
//
// A context's own session changes are not reported to its OnChange
// listeners; changes made by other contexts sharing the bus are.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/brainbox/internal/blobstore"
	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/cryptox"
	"github.com/dmitrijs2005/brainbox/internal/local/broadcast"
	"github.com/dmitrijs2005/brainbox/internal/local/query"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/dmitrijs2005/brainbox/internal/models"
	"github.com/dmitrijs2005/brainbox/internal/timex"
	"github.com/google/uuid"
)

// Event names the reason an OnChange listener is called.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
)

// Operation labels for metrics.
const (
	opSignUp  = "sign_up"
	opSignIn  = "sign_in"
	opSignOut = "sign_out"
	opGetUser = "get_user"
)

// errInvalidCredentials is returned for every failed sign-in, whatever the
// reason, so callers cannot tell an unknown email from a wrong password.
var errInvalidCredentials = common.NewError(common.KindCredential, common.ErrInvalidCredentials.Error(), common.ErrInvalidCredentials)

// Options configures a Service.
type Options struct {
	// SessionKey is the store key of the single-slot session record.
	SessionKey string
	// Secret signs session tokens.
	Secret []byte
	// Validity is how long an issued session lasts.
	Validity time.Duration
	// HashParams are the argon2id parameters for new password hashes.
	// Zero means cryptox.DefaultParams.
	HashParams cryptox.Params
	// Bus connects contexts sharing the store. Nil means a private bus.
	Bus *broadcast.Bus
	// Origin identifies this context on the bus. Empty means a random id.
	Origin string
}

// Service is the auth subsystem of one context.
type Service struct {
	tr       *query.Translator
	slot     slot
	secret   []byte
	validity time.Duration
	params   cryptox.Params
	clock    *timex.Clock
	bus      *broadcast.Bus
	origin   string
	log      logging.Logger

	dummyHash string
}

func NewService(tr *query.Translator, store blobstore.Store, opts Options, clock *timex.Clock, log logging.Logger) (*Service, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("auth: empty token secret")
	}
	if opts.SessionKey == "" {
		return nil, errors.New("auth: empty session key")
	}
	if opts.Validity <= 0 {
		opts.Validity = 7 * 24 * time.Hour
	}
	if opts.HashParams == (cryptox.Params{}) {
		opts.HashParams = cryptox.DefaultParams
	}
	if opts.Bus == nil {
		opts.Bus = broadcast.New()
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	if clock == nil {
		clock = timex.NewClock(nil)
	}
	if log == nil {
		log = logging.Nop()
	}

	// Unknown emails are verified against this hash so that a rejected
	// sign-in costs the same either way.
	dummy, err := cryptox.HashPassword(common.GenerateRandByteArray(16), opts.HashParams)
	if err != nil {
		return nil, err
	}

	return &Service{
		tr:        tr,
		slot:      slot{store: store, key: opts.SessionKey},
		secret:    opts.Secret,
		validity:  opts.Validity,
		params:    opts.HashParams,
		clock:     clock,
		bus:       opts.Bus,
		origin:    opts.Origin,
		log:       log.With("component", "auth"),
		dummyHash: dummy,
	}, nil
}

// Origin returns the id this context publishes under.
func (s *Service) Origin() string { return s.origin }

// SignUp creates a user. It does not sign the user in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.signUp(ctx, email, password)
	record(opSignUp, err)
	return user, err
}

func (s *Service) signUp(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, common.NewError(common.KindInvalid, "email and password are required", nil)
	}

	existing := s.tr.From("users").Select("id").Eq("email", email).MaybeSingle().Execute(ctx)
	if existing.Err != nil {
		return nil, existing.Err
	}
	if existing.Data != nil {
		return nil, common.NewError(common.KindConstraint, "", common.ErrUserExists)
	}

	hash, err := cryptox.HashPassword([]byte(password), s.params)
	if err != nil {
		return nil, common.NewError(common.KindInternal, "failed to hash password", err)
	}

	res := s.tr.From("users").Insert(query.Row{"email": email, "password_hash": hash}).Single().Execute(ctx)
	if res.Err != nil {
		if common.KindOf(res.Err) == common.KindConstraint {
			return nil, common.NewError(common.KindConstraint, "", common.ErrUserExists)
		}
		return nil, res.Err
	}

	var user models.User
	if err := res.Scan(&user); err != nil {
		return nil, common.NewError(common.KindInternal, "", err)
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	pub := user.Public()
	return &pub, nil
}

// SignIn verifies the credentials, opens a session and stores it in the
// session slot. Every credential failure returns the same error value.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := s.signIn(ctx, email, password)
	record(opSignIn, err)
	return sess, err
}

func (s *Service) signIn(ctx context.Context, email, password string) (*Session, error) {
	res := s.tr.From("users").Eq("email", email).MaybeSingle().Execute(ctx)
	if res.Err != nil {
		return nil, res.Err
	}

	if res.Data == nil {
		_, _ = cryptox.VerifyPassword(s.dummyHash, []byte(password))
		s.log.Info(ctx, "sign-in rejected", "reason", "unknown email")
		return nil, errInvalidCredentials
	}

	var user models.User
	if err := res.Scan(&user); err != nil {
		return nil, common.NewError(common.KindInternal, "", err)
	}

	ok, err := cryptox.VerifyPassword(user.PasswordHash, []byte(password))
	if err != nil {
		s.log.Warn(ctx, "stored password hash unreadable", "user_id", user.ID, "err", err)
	}
	if !ok {
		s.log.Info(ctx, "sign-in rejected", "reason", "wrong password", "user_id", user.ID)
		return nil, errInvalidCredentials
	}

	token, expires, err := GenerateToken(user.ID, user.Email, s.secret, s.clock.Now(), s.validity)
	if err != nil {
		return nil, common.NewError(common.KindInternal, "failed to sign token", err)
	}

	ins := s.tr.From("sessions").Insert(query.Row{
		"user_id":    user.ID,
		"token":      token,
		"expires_at": timex.Format(expires),
	}).Execute(ctx)
	if ins.Err != nil {
		return nil, ins.Err
	}

	sess := &Session{User: user.Public(), AccessToken: token, ExpiresAt: expires}
	raw, err := s.slot.write(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.publish(raw)
	s.log.Info(ctx, "signed in", "user_id", user.ID, "expires_at", expires)
	return sess, nil
}

// SignOut ends the current session, if any. Signing out twice is not an
// error.
func (s *Service) SignOut(ctx context.Context) error {
	err := s.signOut(ctx)
	record(opSignOut, err)
	return err
}

func (s *Service) signOut(ctx context.Context) error {
	sess, err := s.slot.read(ctx)
	if common.KindOf(err) == common.KindMalformed {
		return s.drop(ctx)
	}
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	res := s.tr.From("sessions").Delete().Eq("token", sess.AccessToken).Execute(ctx)
	if err := s.drop(ctx); err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	s.log.Info(ctx, "signed out", "user_id", sess.User.ID)
	return nil
}

// GetSession returns the stored session, or nil when signed out. An expired
// or unreadable record is cleared and reported as no session. The database
// is not consulted.
func (s *Service) GetSession(ctx context.Context) (*Session, error) {
	sess, err := s.slot.read(ctx)
	if common.KindOf(err) == common.KindMalformed {
		s.log.Warn(ctx, "dropping unreadable session record", "err", err)
		return nil, s.drop(ctx)
	}
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(s.clock.Now()) {
		s.log.Info(ctx, "session expired", "user_id", sess.User.ID)
		return nil, s.drop(ctx)
	}
	return sess, nil
}

// GetUser returns the signed-in user after verifying the session token on
// its own terms: signature, expiry, and that the session row still exists.
// Any failure clears the session record.
func (s *Service) GetUser(ctx context.Context) (*models.User, error) {
	user, err := s.getUser(ctx)
	record(opGetUser, err)
	return user, err
}

func (s *Service) getUser(ctx context.Context) (*models.User, error) {
	sess, err := s.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, common.NewError(common.KindCredential, "", common.ErrSessionMissing)
	}

	claims, err := ParseToken(sess.AccessToken, s.secret, s.clock.Now())
	if err == nil && claims.Subject != sess.User.ID {
		err = common.ErrInvalidToken
	}
	if err != nil {
		s.log.Info(ctx, "session token rejected", "user_id", sess.User.ID, "err", err)
		return nil, s.reject(ctx, err)
	}

	row := s.tr.From("sessions").Select("id").Eq("token", sess.AccessToken).MaybeSingle().Execute(ctx)
	if row.Err != nil {
		return nil, row.Err
	}
	if row.Data == nil {
		s.log.Info(ctx, "session revoked", "user_id", sess.User.ID)
		return nil, s.reject(ctx, common.ErrSessionMissing)
	}

	res := s.tr.From("users").Eq("id", claims.Subject).MaybeSingle().Execute(ctx)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Data == nil {
		return nil, s.reject(ctx, common.ErrInvalidToken)
	}

	var user models.User
	if err := res.Scan(&user); err != nil {
		return nil, common.NewError(common.KindInternal, "", err)
	}
	pub := user.Public()
	return &pub, nil
}

// OnChange calls fn once, asynchronously, with the current session and
// EventInitialSession, then on every session change made by another
// context. The returned function stops further calls.
func (s *Service) OnChange(fn func(ev Event, sess *Session)) (unsubscribe func()) {
	var stopped atomic.Bool

	unsub := s.bus.Subscribe(s.origin, s.slot.key, func(ev broadcast.Event) {
		if stopped.Load() {
			return
		}
		if ev.Value == nil {
			fn(EventSignedOut, nil)
			return
		}
		sess, err := decodeSession(ev.Value)
		if err != nil || sess == nil {
			s.log.Warn(context.Background(), "ignoring unreadable session broadcast", "origin", ev.Origin)
			return
		}
		fn(EventSignedIn, sess)
	})

	go func() {
		sess, err := s.GetSession(context.Background())
		if err != nil {
			s.log.Warn(context.Background(), "initial session read failed", "err", err)
		}
		if !stopped.Load() {
			fn(EventInitialSession, sess)
		}
	}()

	return func() {
		stopped.Store(true)
		unsub()
	}
}

// drop clears the session slot and tells other contexts.
func (s *Service) drop(ctx context.Context) error {
	if err := s.slot.clear(ctx); err != nil {
		return err
	}
	s.publish(nil)
	return nil
}

func (s *Service) reject(ctx context.Context, cause error) error {
	if err := s.drop(ctx); err != nil {
		return err
	}
	return common.NewError(common.KindCredential, "", cause)
}

func (s *Service) publish(raw []byte) {
	s.bus.Publish(broadcast.Event{Origin: s.origin, Key: s.slot.key, Value: raw})
}

func record(op string, err error) {
	status := metrics.Ok
	if err != nil {
		status = metrics.Fail
	}
	metrics.AuthAttemptsTotal.WithLabelValues(op, status).Inc()
}
