package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"brokerage-gateway/domain/dto"
	"brokerage-gateway/domain/model"
	"brokerage-gateway/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// AccountIDKey is the gin context key holding the caller's brokerage account.
const AccountIDKey = "account_id"

// Auth validates the bearer JWT and stores its account_id claim in the context.
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

		tokenString, ok := bearer(ctx.Request.Header.Get("Authorization"))
		if !ok || secretKey == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		claims, token, err := getClaim(tokenString, secretKey)
		if err != nil || token == nil || !token.Valid {
			res.ResponseMessage = reason(err)
			logger.GetLogger().WithField("error", err).Warn("Rejected bearer token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		if claims.AccountID == "" {
			res.ResponseMessage = "Token carries no account"
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Next()
	}
}

// AccountID returns the account set by Auth.
func AccountID(ctx *gin.Context) string {
	return ctx.GetString(AccountIDKey)
}

func bearer(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

func reason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return "That's not even a token"
		case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
			return "Timing is everything"
		default:
			return fmt.Sprintf("Couldn't handle this token: %v", err)
		}
	}
	return "Unauthorized"
}

func getClaim(tokenString, secretKey string) (*model.AccountClaims, *jwt.Token, error) {
	var claims model.AccountClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	return &claims, token, err
}
