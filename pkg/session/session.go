// Package session tracks who is using the store: an admin signed in to
// the back office and the display name a shopper entered at the door.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/neomart/pkg/apperr"
	"github.com/example/neomart/pkg/audit"
	"github.com/example/neomart/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminEntry    = "/admin"
	CustomerEntry = "/shop"
)

type Store interface {
	Session(ctx context.Context) (models.Session, error)
	SetAdmin(ctx context.Context, user string) error
	ClearAdmin(ctx context.Context) error
	SetCustomer(ctx context.Context, name string) error
}

// Credentials is the single back-office account.
type Credentials struct {
	LoginID      string
	PasswordHash []byte
}

type Service struct {
	store  Store
	creds  Credentials
	audit  audit.Recorder
	logger *zap.Logger
}

func NewService(store Store, creds Credentials, rec audit.Recorder, logger *zap.Logger) *Service {
	if len(creds.PasswordHash) == 0 {
		logger.Warn("No admin password hash configured, admin login is disabled")
	}
	return &Service{store: store, creds: creds, audit: rec, logger: logger}
}

func (s *Service) Login(ctx context.Context, loginID, password string) error {
	var empty []string
	if loginID == "" {
		empty = append(empty, "loginId")
	}
	if password == "" {
		empty = append(empty, "password")
	}
	if len(empty) > 0 {
		return &apperr.ValidationError{Fields: empty}
	}
	if loginID != s.creds.LoginID || len(s.creds.PasswordHash) == 0 {
		return apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.creds.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apperr.ErrInvalidCredentials
		}
		return fmt.Errorf("check admin password: %w", err)
	}

	if err := s.store.SetAdmin(ctx, loginID); err != nil {
		return err
	}
	s.logger.Info("Admin logged in", zap.String("admin", loginID))
	s.audit.Record(audit.ActionAdminLogin, loginID, loginID, nil)
	return nil
}

func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.store.Session(ctx)
	if err != nil {
		return err
	}
	if err := s.store.ClearAdmin(ctx); err != nil {
		return err
	}
	if sess.AdminAuth {
		s.audit.Record(audit.ActionAdminLogout, sess.AdminUser, sess.AdminUser, nil)
	}
	return nil
}

// EnterShop records the shopper's display name, replacing any previous one.
func (s *Service) EnterShop(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &apperr.ValidationError{Fields: []string{"name"}}
	}
	if err := s.store.SetCustomer(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Service) RequireAdmin(ctx context.Context) (models.Session, error) {
	sess, err := s.store.Session(ctx)
	if err != nil {
		return sess, err
	}
	if !sess.AdminAuth {
		return sess, &apperr.NotAuthenticatedError{Role: "admin", Redirect: AdminEntry}
	}
	return sess, nil
}

func (s *Service) RequireCustomer(ctx context.Context) (string, error) {
	sess, err := s.store.Session(ctx)
	if err != nil {
		return "", err
	}
	if sess.CustomerName == "" {
		return "", &apperr.NotAuthenticatedError{Role: "customer", Redirect: CustomerEntry}
	}
	return sess.CustomerName, nil
}
