package businessflow

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MaxTemplateLength is the longest template accepted, in characters
const MaxTemplateLength = 4000

// TemplateFlow manages the message template of each user
type TemplateFlow interface {
	GetTemplate(ctx context.Context, principal Principal, uploadID *uint) (*dto.TemplateResponse, error)
	SaveTemplate(ctx context.Context, principal Principal, req *dto.SaveTemplateRequest) (*dto.TemplateResponse, error)
	ActiveTemplate(ctx context.Context, principal Principal) (string, error)
}

// TemplateFlowImpl implements TemplateFlow with a redis read-through cache
type TemplateFlowImpl struct {
	store       SessionStore
	rc          *redis.Client
	cacheConfig *config.CacheConfig
	defaultText string
	logger      *zap.Logger
}

// NewTemplateFlow creates a new template flow instance. rc may be nil.
func NewTemplateFlow(store SessionStore, rc *redis.Client, cacheConfig *config.CacheConfig, msgConfig config.MessagingConfig, logger *zap.Logger) TemplateFlow {
	defaultText := msgConfig.DefaultTemplate
	if defaultText == "" {
		defaultText = config.DefaultTemplate
	}
	return &TemplateFlowImpl{
		store:       store,
		rc:          rc,
		cacheConfig: cacheConfig,
		defaultText: defaultText,
		logger:      logger,
	}
}

func (f *TemplateFlowImpl) cacheKey(email string) string {
	prefix := ""
	if f.cacheConfig != nil {
		prefix = f.cacheConfig.RedisPrefix
	}
	return redisKey(prefix, "template", email)
}

func (f *TemplateFlowImpl) cacheTTL() time.Duration {
	if f.cacheConfig == nil || f.cacheConfig.DefaultTTL <= 0 {
		return time.Hour
	}
	return f.cacheConfig.DefaultTTL
}

// lookup returns the saved template of the principal, found=false meaning the default applies
func (f *TemplateFlowImpl) lookup(ctx context.Context, principal Principal) (string, bool, error) {
	if !principal.CanPersist() || f.store == nil {
		return "", false, nil
	}

	// try redis first
	if f.rc != nil {
		content, err := f.rc.Get(ctx, f.cacheKey(principal.Email)).Result()
		if err == nil {
			return content, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			f.logger.Warn("Template cache read failed", zap.String("email", principal.Email), zap.Error(err))
		}
	}

	content, found, err := f.store.GetTemplate(ctx, principal.Email)
	if err != nil {
		return "", false, err
	}
	if found && f.rc != nil {
		if err := f.rc.Set(ctx, f.cacheKey(principal.Email), content, f.cacheTTL()).Err(); err != nil {
			f.logger.Warn("Template cache write failed", zap.String("email", principal.Email), zap.Error(err))
		}
	}
	return content, found, nil
}

// ActiveTemplate returns the saved template or the default one
func (f *TemplateFlowImpl) ActiveTemplate(ctx context.Context, principal Principal) (string, error) {
	content, found, err := f.lookup(ctx, principal)
	if err != nil {
		return "", NewBusinessError("TEMPLATE_LOAD_FAILED", "Failed to load template", err)
	}
	if !found {
		return f.defaultText, nil
	}
	return content, nil
}

// GetTemplate returns the active template and the variables usable in it.
// Variables come from the given upload when one is selected.
func (f *TemplateFlowImpl) GetTemplate(ctx context.Context, principal Principal, uploadID *uint) (*dto.TemplateResponse, error) {
	content, found, err := f.lookup(ctx, principal)
	if err != nil {
		return nil, NewBusinessError("TEMPLATE_LOAD_FAILED", "Failed to load template", err)
	}
	if !found {
		content = f.defaultText
	}

	variables := TemplateVariables(nil)
	if uploadID != nil {
		session, err := loadOwnedSession(ctx, f.store, principal, *uploadID)
		if err != nil {
			return nil, err
		}
		variables = TemplateVariables(session.Contacts)
	}

	return &dto.TemplateResponse{
		Content:   content,
		IsDefault: !found,
		Variables: variables,
	}, nil
}

// SaveTemplate stores the template for the principal and refreshes the cache
func (f *TemplateFlowImpl) SaveTemplate(ctx context.Context, principal Principal, req *dto.SaveTemplateRequest) (*dto.TemplateResponse, error) {
	if !principal.CanPersist() || f.store == nil {
		return nil, NewBusinessError("PERSISTENCE_UNAVAILABLE", "Templates cannot be saved in this session", ErrPersistenceDisabled)
	}
	if utf8.RuneCountInString(req.Content) > MaxTemplateLength {
		return nil, NewBusinessError("TEMPLATE_TOO_LONG", "Template is too long", ErrTemplateTooLong)
	}

	if err := f.store.SaveTemplate(ctx, principal.Email, req.Content); err != nil {
		return nil, NewBusinessError("TEMPLATE_SAVE_FAILED", "Failed to save template", err)
	}
	if f.rc != nil {
		if err := f.rc.Set(ctx, f.cacheKey(principal.Email), req.Content, f.cacheTTL()).Err(); err != nil {
			// a stale entry would shadow the new template
			_ = f.rc.Del(ctx, f.cacheKey(principal.Email)).Err()
			f.logger.Warn("Template cache write failed", zap.String("email", principal.Email), zap.Error(err))
		}
	}

	now := time.Now().UTC()
	return &dto.TemplateResponse{
		Content:   req.Content,
		IsDefault: false,
		Variables: TemplateVariables(nil),
		UpdatedAt: &now,
	}, nil
}
