// Package auth resolves a Discord OAuth authorization code into a local user
// row and a signed session token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"donutbet/internal/config"
	"donutbet/internal/model"
	pkgAuth "donutbet/pkg/auth"
	"donutbet/pkg/apperrors"
	"donutbet/pkg/logger"
	"donutbet/pkg/utils/random"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	rdb        *redis.Client
	oauth      *oauth2.Config
	profileURL string
	stateTTL   time.Duration
	httpWait   time.Duration
}

type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type profilePayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	conf := config.GlobalConfig.OAuth
	return &Service{
		db:  db,
		rdb: rdb,
		oauth: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  conf.AuthURL,
				TokenURL: conf.TokenURL,
			},
		},
		profileURL: conf.ProfileURL,
		stateTTL:   10 * time.Minute,
		httpWait:   10 * time.Second,
	}
}

// AuthorizeURL issues a single-use state nonce and returns the provider
// authorize URL to redirect to.
func (s *Service) AuthorizeURL(ctx context.Context) (string, error) {
	state := random.State()
	if err := s.rdb.Set(ctx, buildStateKey(state), "1", s.stateTTL).Err(); err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state), nil
}

// HandleCallback consumes the state, exchanges the code, fetches the profile
// and upserts the user. The starting grant is applied only on first creation.
func (s *Service) HandleCallback(ctx context.Context, code, state string) (*LoginResult, error) {
	if code == "" || state == "" {
		return nil, apperrors.ErrInvalidOAuthState
	}
	if err := s.consumeState(ctx, state); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.httpWait)
	defer cancel()

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		logger.Log.Warn("oauth code exchange failed", zap.Error(err))
		return nil, apperrors.ErrOAuthExchange
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		logger.Log.Warn("oauth profile fetch failed", zap.Error(err))
		return nil, apperrors.ErrOAuthExchange
	}

	user, err := s.upsertUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	sessionToken, err := pkgAuth.GenerateUserToken(user.ID, user.DiscordID)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("user logged in",
		zap.String("discordID", user.DiscordID),
		zap.String("username", user.Username))

	return &LoginResult{Token: sessionToken, User: *user}, nil
}

// CurrentUser backs the /auth/user endpoint.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) consumeState(ctx context.Context, state string) error {
	_, err := s.rdb.GetDel(ctx, buildStateKey(state)).Result()
	if err != nil {
		if err == redis.Nil {
			return apperrors.ErrInvalidOAuthState
		}
		return err
	}
	return nil
}

func (s *Service) fetchProfile(ctx context.Context, token *oauth2.Token) (*profilePayload, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(s.profileURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile endpoint returned %d", resp.StatusCode)
	}

	var profile profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("profile payload missing id")
	}
	return &profile, nil
}

func (s *Service) upsertUser(ctx context.Context, profile *profilePayload) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("discord_id = ?", profile.ID).First(&user).Error
		if err == nil {
			if user.Username != profile.Username {
				if err := tx.Model(&user).Update("username", profile.Username).Error; err != nil {
					return err
				}
				user.Username = profile.Username
			}
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		grant := config.GlobalConfig.Game.StartingBalance
		user = model.User{
			DiscordID: profile.ID,
			Username:  profile.Username,
			Coins:     grant,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&model.LedgerEntry{
			UserID:       user.ID,
			Type:         model.EntryGrant,
			Delta:        grant,
			BalanceAfter: grant,
			MetaJSON:     []byte(`{}`),
			CreatedAt:    time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func buildStateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}
