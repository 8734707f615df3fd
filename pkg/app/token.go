package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 默认 Token 签发者
const DefaultTokenIssuer = "fast-note-anchor"

// Token 用途
const (
	// ScopeBridge 钱包桥接页面
	ScopeBridge = "bridge"
	// ScopeAPI 本地控制接口
	ScopeAPI = "api"
)

// TokenConfig 定义 Token 管理器的配置
type TokenConfig struct {
	SecretKey string        `yaml:"secret-key"` // JWT 签名密钥
	Expiry    time.Duration `yaml:"expiry"`     // Token 过期时间，默认 12 小时
	Issuer    string        `yaml:"issuer"`     // Token 签发者
}

// TokenManager 定义 Token 管理接口
type TokenManager interface {
	Generate(scope, ip string) (string, error)
	Parse(token string) (*TokenClaims, error)
	Validate(token, scope string) error
	GetSecretKey() string
}

// TokenClaims token 携带的信息
type TokenClaims struct {
	Scope string `json:"scope"`
	IP    string `json:"ip"`
	jwt.RegisteredClaims
}

// tokenManager 实现 TokenManager 接口
type tokenManager struct {
	config TokenConfig
}

// NewTokenManager 创建一个新的 TokenManager 实例
func NewTokenManager(cfg TokenConfig) TokenManager {
	if cfg.Expiry == 0 {
		cfg.Expiry = 12 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	return &tokenManager{config: cfg}
}

// Generate 生成一个新的 JWT Token
func (t *tokenManager) Generate(scope, ip string) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		Scope: scope,
		IP:    ip,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    t.config.Issuer,
			Subject:   scope + "-token",
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.config.SecretKey))
}

// Parse 解析 JWT Token
func (t *tokenManager) Parse(token string) (*TokenClaims, error) {
	return ParseTokenWithKey(token, t.config.SecretKey)
}

// Validate 验证 Token 有效且用途匹配
func (t *tokenManager) Validate(token, scope string) error {
	claims, err := t.Parse(token)
	if err != nil {
		return err
	}
	if claims.Scope != scope {
		return fmt.Errorf("token scope %q, want %q", claims.Scope, scope)
	}
	return nil
}

// GetSecretKey 获取密钥
func (t *tokenManager) GetSecretKey() string {
	return t.config.SecretKey
}

// ParseTokenWithKey 使用指定密钥解析 Token
func ParseTokenWithKey(tokenString string, secretKey string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// GetToken 从请求中读取 token，依次查找 query 与 header
func GetToken(c *gin.Context) string {
	if s, exist := c.GetQuery("authorization"); exist {
		return s
	}
	if s, exist := c.GetQuery("token"); exist {
		return s
	}
	s := c.GetHeader("Authorization")
	if len(s) > 7 && (s[:7] == "Bearer " || s[:7] == "bearer ") {
		return s[7:]
	}
	return s
}
