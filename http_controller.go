package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the JSON auth API on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")

	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	app.Post(controller.Routes.RegisterProvider, controller.ProviderRegistrationCreate).
		SetName("auth.register-provider")

	app.Post(controller.Routes.VerifyEmail, controller.VerifyEmailPost).
		SetName("auth.verify-email")

	app.Post(controller.Routes.ResendVerification, controller.ResendVerificationPost).
		SetName("auth.resend-verification")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("auth.pwd-reset")

	app.Post(fmt.Sprintf("%s/execute", controller.Routes.PasswordReset), controller.PasswordResetExecute).
		SetName("auth.pwd-reset-do")

	app.Post(controller.Routes.ChangePassword, controller.ChangePasswordPost).
		SetName("auth.change-password")
}

type AuthControllerRoutes struct {
	Login              string
	Logout             string
	Refresh            string
	Register           string
	RegisterProvider   string
	VerifyEmail        string
	ResendVerification string
	PasswordReset      string
	ChangePassword     string
}

type AuthController struct {
	Debug   bool
	Logger  Logger
	Repo    RepositoryManager
	Auther  *Auther
	Limiter *RateLimiter
	Mailer  Mailer
	Opts    Config
	Routes  *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:              "/auth/login",
			Logout:             "/auth/logout",
			Refresh:            "/auth/refresh",
			Register:           "/auth/register",
			RegisterProvider:   "/auth/register/healthcare-provider",
			VerifyEmail:        "/auth/verify-email",
			ResendVerification: "/auth/resend-verification",
			PasswordReset:      "/auth/password-reset",
			ChangePassword:     "/auth/change-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Opts == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerLimiter(limiter *RateLimiter) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limiter = limiter
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

func WithControllerConfig(opts Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Opts = opts
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionLogin) {
		return a.rateLimited(ctx, ActionLogin)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	raw := bearerToken(ctx.Header(router.HeaderAuthorization), a.Opts.GetAuthScheme())
	a.Auther.Logout(raw)

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Username        string `form:"username" json:"username"`
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(10, 11), is.Digit),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionRegister) {
		return a.rateLimited(ctx, ActionRegister)
	}

	var user *User
	msg := RegisterUserMessage{
		Username:   payload.Username,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Email:      payload.Email,
		Phone:      payload.Phone,
		Password:   payload.Password,
		OnResponse: func(u *User) { user = u },
	}

	handler := NewRegisterUserHandler(a.Repo, a.Opts).
		WithMailer(a.Mailer).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("user registration failed: %v", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, user)
}

// ProviderRegistrationCreatePayload extends registration with license details
type ProviderRegistrationCreatePayload struct {
	RegistrationCreatePayload
	LicenseNumber       string `form:"license_number" json:"license_number"`
	MedicalSpecialty    string `form:"medical_specialty" json:"medical_specialty"`
	HospitalAffiliation string `form:"hospital_affiliation" json:"hospital_affiliation"`
}

func (r ProviderRegistrationCreatePayload) Validate() error {
	if err := r.RegistrationCreatePayload.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.LicenseNumber, validation.Required, validation.Length(4, 50)),
		validation.Field(&r.MedicalSpecialty, validation.Required, validation.Length(2, 100)),
	)
}

func (a *AuthController) ProviderRegistrationCreate(ctx router.Context) error {
	payload := new(ProviderRegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionRegister) {
		return a.rateLimited(ctx, ActionRegister)
	}

	var user *User
	msg := RegisterProviderMessage{
		RegisterUserMessage: RegisterUserMessage{
			Username:   payload.Username,
			FirstName:  payload.FirstName,
			LastName:   payload.LastName,
			Email:      payload.Email,
			Phone:      payload.Phone,
			Password:   payload.Password,
			OnResponse: func(u *User) { user = u },
		},
		LicenseNumber:       payload.LicenseNumber,
		MedicalSpecialty:    payload.MedicalSpecialty,
		HospitalAffiliation: payload.HospitalAffiliation,
	}

	handler := NewRegisterProviderHandler(a.Repo, a.Opts).
		WithMailer(a.Mailer).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("provider registration failed: %v", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, user)
}

// VerifyEmailPayload carries the emailed verification token
type VerifyEmailPayload struct {
	Token string `form:"token" json:"token"`
}

func (r VerifyEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) VerifyEmailPost(ctx router.Context) error {
	payload := new(VerifyEmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionVerify) {
		return a.rateLimited(ctx, ActionVerify)
	}

	handler := NewVerifyEmailHandler(a.Repo).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), VerifyEmailMessage{Token: payload.Token}); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "email verified",
	})
}

// EmailPayload is shared by resend verification and reset initialization
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendVerificationPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionVerify) {
		return a.rateLimited(ctx, ActionVerify)
	}

	handler := NewResendVerificationHandler(a.Repo, a.Opts).
		WithMailer(a.Mailer).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), ResendVerificationMessage{Email: payload.Email}); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "verification email sent",
	})
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionReset) {
		return a.rateLimited(ctx, ActionReset)
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Opts).
		WithMailer(a.Mailer).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "password reset email sent",
	})
}

// PasswordResetExecutePayload spends the emailed reset token
type PasswordResetExecutePayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (r PasswordResetExecutePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetExecute(ctx router.Context) error {
	payload := new(PasswordResetExecutePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if !a.allow(ctx, ActionReset) {
		return a.rateLimited(ctx, ActionReset)
	}

	handler := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	msg := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "password updated",
	})
}

// ChangePasswordPayload rotates the password of the logged-in user
type ChangePasswordPayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ChangePasswordPost(ctx router.Context) error {
	principal, _ := ctx.Locals(a.Opts.GetContextKey()).(*Principal)
	if principal == nil {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "authentication required",
		})
	}

	payload := new(ChangePasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	handler := NewChangePasswordHandler(a.Repo).WithLogger(a.Logger)
	msg := ChangePasswordMessage{
		Username:        principal.Username,
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	}

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "password updated",
	})
}

// allow spends rate limit quota for the request's client. A nil limiter
// means rate limiting is disabled.
func (a *AuthController) allow(ctx router.Context, action RateAction) bool {
	if a.Limiter == nil {
		return true
	}
	return a.Limiter.TryConsume(ClientKeyFromContext(ctx), action)
}

func (a *AuthController) rateLimited(ctx router.Context, action RateAction) error {
	if a.Limiter != nil {
		remaining := a.Limiter.Remaining(ClientKeyFromContext(ctx), action)
		ctx.SetHeader("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}
	return ctx.JSON(http.StatusTooManyRequests, map[string]string{
		"error": ErrRateLimited.Message,
		"code":  TextCodeRateLimited,
	})
}

func (a *AuthController) badPayload(ctx router.Context, err error) error {
	a.Logger.Error("failed to parse payload: %v", err)
	return ctx.JSON(router.StatusBadRequest, map[string]string{
		"error": "failed to parse request body",
	})
}

func (a *AuthController) invalidPayload(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error":      "validation failed",
		"validation": FormatValidationErrorToMap(err),
	})
}

// respondError translates domain errors into JSON responses. Internal detail
// never leaks: unknown errors collapse into a generic 500.
func (a *AuthController) respondError(ctx router.Context, err error) error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		a.Logger.Error("unhandled error: %v", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
	}

	status := statusForCategory(rich.Category)
	if status == router.StatusInternalServerError {
		a.Logger.Error("internal error: %v", err)
		return ctx.JSON(status, map[string]string{
			"error": "internal error",
		})
	}

	body := map[string]string{"error": rich.Message}
	if rich.TextCode != "" {
		body["code"] = rich.TextCode
	}

	return ctx.JSON(status, body)
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return router.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	}
	return router.StatusInternalServerError
}

// ClientKeyFromContext derives the rate limit key for the request. Proxy
// headers win over the transport peer, matching the deployment topology
// where the service sits behind a reverse proxy.
//
// When the router adapter does not expose the peer address and no proxy
// headers are set, every direct client shares a single "unknown" bucket.
// Front such an adapter with a proxy that sets X-Forwarded-For to keep
// clients apart.
func ClientKeyFromContext(ctx router.Context) string {
	peer := "unknown"
	if p, ok := ctx.(interface{ IP() string }); ok {
		peer = p.IP()
	}

	return ClientKey(
		ctx.Header("X-Forwarded-For"),
		ctx.Header("X-Real-IP"),
		peer,
	)
}

func bearerToken(header, scheme string) string {
	if scheme == "" {
		scheme = "Bearer"
	}
	if len(header) > len(scheme)+1 && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}

// ValidateStringEquals enforces that two payload fields match.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
