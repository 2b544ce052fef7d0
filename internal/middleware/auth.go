package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

const ContextActor = "actor"

// Claims carried by the identity service's tokens. Exactly one of
// patient_id / clinician_id is set for non-admin tokens.
type Claims struct {
	PatientID   string `json:"patient_id,omitempty"`
	ClinicianID string `json:"clinician_id,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Authenticate verifies the bearer token and sets the Actor in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"status": "error", "message": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"status": "error", "message": "invalid authorization format"})
			return
		}

		actor, err := m.parseActor(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"status": "error", "message": "invalid token"})
			return
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

func (m *AuthMiddleware) parseActor(tokenString string) (*model.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	actor := &model.Actor{IsAdmin: claims.IsAdmin}
	if claims.PatientID != "" {
		id, err := uuid.Parse(claims.PatientID)
		if err != nil {
			return nil, fmt.Errorf("invalid patient_id claim: %w", err)
		}
		actor.PatientID = &id
	}
	if claims.ClinicianID != "" {
		id, err := uuid.Parse(claims.ClinicianID)
		if err != nil {
			return nil, fmt.Errorf("invalid clinician_id claim: %w", err)
		}
		actor.ClinicianID = &id
	}
	if !actor.IsAdmin && actor.PatientID == nil && actor.ClinicianID == nil {
		return nil, fmt.Errorf("token carries no identity")
	}
	return actor, nil
}

// GetActor returns the authenticated Actor set by Authenticate.
func GetActor(c *gin.Context) (*model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return nil, false
	}
	actor, ok := v.(*model.Actor)
	return actor, ok
}
