package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// AuthErrorKind distinguishes a missing credential from a rejected one.
type AuthErrorKind int

const (
	AuthUnauthorized AuthErrorKind = iota
	AuthForbidden
)

type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// Status maps the error to its HTTP status code.
func (e *AuthError) Status() int {
	if e.Kind == AuthUnauthorized {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func (e *AuthError) Code() string {
	if e.Kind == AuthUnauthorized {
		return "UNAUTHORIZED"
	}
	return "FORBIDDEN"
}

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// Verify validates an Authorization header value and returns the token subject.
func (j *JWTAuth) Verify(authHeader string) (string, error) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", &AuthError{Kind: AuthUnauthorized, Message: "Missing authorization header"}
	}

	scheme, tokenStr, found := strings.Cut(authHeader, " ")
	tokenStr = strings.TrimSpace(tokenStr)
	if !found || tokenStr == "" {
		return "", &AuthError{Kind: AuthUnauthorized, Message: "Missing bearer token"}
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return "", &AuthError{Kind: AuthForbidden, Message: "Invalid authorization format"}
	}

	return j.VerifyToken(tokenStr)
}

// VerifyToken checks signature and expiry of a raw token string.
func (j *JWTAuth) VerifyToken(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", &AuthError{Kind: AuthUnauthorized, Message: "Missing bearer token"}
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", &AuthError{Kind: AuthForbidden, Message: "Token has expired", Err: err}
		}
		return "", &AuthError{Kind: AuthForbidden, Message: "Invalid token", Err: err}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", &AuthError{Kind: AuthForbidden, Message: "Invalid token claims"}
	}

	subject := subjectFromClaims(claims)
	if subject == "" {
		return "", &AuthError{Kind: AuthForbidden, Message: "Token has no subject"}
	}
	return subject, nil
}

// subjectFromClaims prefers the registered "sub" claim and falls back to the
// "user_id" and "id" claims used by older token issuers.
func subjectFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "id"} {
		switch v := claims[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// Middleware validates JWT and attaches user_id to context
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := j.Verify(r.Header.Get("Authorization"))
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				writeError(w, authErr.Status(), authErr.Code(), authErr.Message, r)
				return
			}
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Invalid token", r)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUserID returns a context carrying the verified owner identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts user_id from request context
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
