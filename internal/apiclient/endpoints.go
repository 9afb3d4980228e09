package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
)

// Marketplace API paths, relative to the base URL.
const (
	PathSendOTP      = "/auth/send-otp"
	PathVerifyOTP    = "/auth/verify-otp"
	PathRegistration = "/auth/registration"
	PathLogin        = "/auth/login"
	PathMyInfo       = "/user/my-info"
	PathLogout       = "/auth/logout"
	PathRefresh      = "/auth/refresh"
)

// Registration is the account creation payload.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
}

type otpResult struct {
	Valid    *bool `json:"valid"`
	Verified *bool `json:"verified"`
}

func (c *Client) post(ctx context.Context, path string, payload any, authenticated bool) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req := Request{Method: http.MethodPost, Path: path, Body: body}
	if authenticated {
		return c.Do(ctx, req)
	}
	return c.send(ctx, req, "")
}

// Login exchanges credentials for a bearer token. It does not touch the
// session.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := c.post(ctx, PathLogin, loginRequest{Username: username, Password: password}, false)
	if err != nil {
		return "", err
	}
	result, err := decodeResult[loginResult](resp, "login", c.cfg)
	if err != nil {
		return "", err
	}
	if !result.Authenticated {
		return "", apperrors.Unauthorized("invalid email or password")
	}
	if result.Token == "" {
		return "", apperrors.MalformedResponse("login response carries no token")
	}
	return result.Token, nil
}

// MyInfo fetches the signed-in profile through the authenticated path.
func (c *Client) MyInfo(ctx context.Context) (*domain.User, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: PathMyInfo})
	if err != nil {
		return nil, err
	}
	profile, err := decodeResult[WireProfile](resp, "my-info", c.cfg)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" && profile.Username == "" && profile.Email == "" {
		return nil, apperrors.MalformedResponse("my-info response carries no identity")
	}
	u := ToUser(profile)
	return &u, nil
}

// Logout tells the API to revoke token.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.post(ctx, PathLogout, tokenRequest{Token: token}, false)
	if err != nil {
		return err
	}
	_, err = checkEnvelope(resp, "logout", c.cfg)
	return err
}

// SendOTP asks the API to email a one-time code.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	resp, err := c.post(ctx, PathSendOTP, otpRequest{Email: email}, false)
	if err != nil {
		return err
	}
	_, err = checkEnvelope(resp, "send-otp", c.cfg)
	return err
}

// VerifyOTP checks a one-time code. A result that explicitly reports the code
// as invalid is an InvalidInput error.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) error {
	resp, err := c.post(ctx, PathVerifyOTP, otpRequest{Email: email, OTP: otp}, false)
	if err != nil {
		return err
	}
	env, err := checkEnvelope(resp, "verify-otp", c.cfg)
	if err != nil {
		return err
	}
	if len(env.Result) == 0 {
		return nil
	}
	var result otpResult
	if json.Unmarshal(env.Result, &result) != nil {
		return nil
	}
	if (result.Valid != nil && !*result.Valid) || (result.Verified != nil && !*result.Verified) {
		return apperrors.InvalidInput("the code is invalid or has expired")
	}
	return nil
}

// Register creates an account. It never signs the user in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	resp, err := c.post(ctx, PathRegistration, reg, false)
	if err != nil {
		return err
	}
	_, err = checkEnvelope(resp, "registration", c.cfg)
	return err
}
