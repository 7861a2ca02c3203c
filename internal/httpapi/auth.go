package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator 入口鉴权接口（核心处理链不依赖鉴权）
type TokenValidator interface {
	Validate(token string) error
}

// JWTValidator 基于 HS256 的令牌校验
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) Validate(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}

// requireAuth 鉴权中间件。validator 为 nil 时关闭鉴权（开发模式）
func requireAuth(validator TokenValidator, next http.HandlerFunc) http.HandlerFunc {
	if validator == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, Fail("missing bearer token"))
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		if err := validator.Validate(tokenString); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeJSON(w, http.StatusUnauthorized, Result[any]{
					Code:    ResultTokenExpired,
					Type:    "error",
					Message: "token expired",
				})
				return
			}
			writeJSON(w, http.StatusUnauthorized, Fail("invalid token"))
			return
		}

		next(w, r)
	}
}
