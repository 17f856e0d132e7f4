package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/shop-api/internal/apperr"
	"github.com/linemk/shop-api/internal/domain/models"
	security "github.com/linemk/shop-api/internal/jwt-new"
	"github.com/linemk/shop-api/internal/storage"
)

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	secret   string
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, body models.Document) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
}

// AuthResult ответ регистрации и входа
type AuthResult struct {
	AccessToken string          `json:"accessToken"`
	User        models.Document `json:"user"`
}

// Credentials email и пароль из тела запроса
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
}

var validate = validator.New()

// checkCredentials переводит ошибки валидатора в сообщения для клиента
func checkCredentials(c Credentials) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.BadRequest("Email and password are required")
	}
	fe := fieldErrs[0]
	switch {
	case fe.Tag() == "required":
		return apperr.BadRequest("Email and password are required")
	case fe.Field() == "Email":
		return apperr.BadRequest("Email format is invalid")
	default:
		return apperr.BadRequest("Password is too short")
	}
}

// Register создает пользователя с ролью customer. Лишние поля тела сохраняются в записи,
// id и role из тела игнорируются, пароль хранится только в виде bcrypt-хэша
func (a *AuthService) Register(ctx context.Context, body models.Document) (*AuthResult, error) {
	const op = "auth.Register"

	creds := Credentials{}
	creds.Email, _ = body.String("email")
	creds.Password, _ = body.String(models.PasswordField)
	creds.Email = strings.TrimSpace(creds.Email)

	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", creds.Email),
	)

	if err := checkCredentials(creds); err != nil {
		logger.Info("registration rejected", slog.Any("error", err))
		return nil, err
	}

	// Хеширование пароля с помощью bcrypt (автоматически добавляет соль)
	passHash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	doc := body.Clone()
	delete(doc, models.IDField)
	doc["email"] = creds.Email
	doc[models.PasswordField] = string(passHash)
	doc["role"] = models.RoleCustomer

	created, err := a.userRepo.CreateUser(ctx, doc)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Info("email already registered")
			return nil, apperr.BadRequest("Email already exists")
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	result, err := a.issue(created)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user registered", slog.Any("userID", created[models.IDField]))
	return result, nil
}

// Login проверяет email и пароль и выдает токен
func (a *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "auth.Login"
	email = strings.TrimSpace(email)
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	if err := checkCredentials(Credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	doc, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Info("user not found")
			return nil, apperr.BadRequest("Cannot find user")
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	hash, _ := doc.String(models.PasswordField)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		logger.Warn("invalid password")
		return nil, apperr.BadRequest("Incorrect password")
	}

	result, err := a.issue(doc)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Any("userID", doc[models.IDField]))
	return result, nil
}

// EnsureAdmin создает администратора, если учетные данные заданы и такого email еще нет
func (a *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	const op = "auth.EnsureAdmin"
	if email == "" || password == "" {
		return nil
	}
	logger := a.log.With(slog.String("op", op), slog.String("email", email))

	_, err := a.userRepo.GetUserByEmail(ctx, email)
	if err == nil {
		logger.Debug("admin already exists")
		return nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: failed to hash password: %w", op, err)
	}
	_, err = a.userRepo.CreateUser(ctx, models.Document{
		"name":               name,
		"email":              email,
		models.PasswordField: string(passHash),
		"role":               models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to create admin: %w", op, err)
	}

	logger.Info("admin account created")
	return nil
}

func (a *AuthService) issue(doc models.Document) (*AuthResult, error) {
	user, ok := models.UserFromDocument(doc)
	if !ok {
		return nil, errors.New("stored user has no id")
	}
	token, err := security.NewToken(user, a.secret, a.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{AccessToken: token, User: models.PublicUser(doc)}, nil
}
