package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	"github.com/smallbiznis/animegate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleOwner = "role:owner"
	RoleAdmin = "role:admin"
)

const (
	ObjectPanel     = "panel"
	ObjectCatalog   = "catalog"
	ObjectBalance   = "balance"
	ObjectBroadcast = "broadcast"
	ObjectAdmins    = "admins"
)

const (
	ActionPanelView      = "panel.view"
	ActionCatalogManage  = "catalog.manage"
	ActionBalanceManage  = "balance.manage"
	ActionBroadcastStart = "broadcast.start"
	ActionAdminsGrant    = "admins.grant"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	BotConfig *config.BotConfigHolder
	Enforcer  *casbin.SyncedEnforcer
	AuditSvc  auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	botCfg   *config.BotConfigHolder
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) (Service, error) {
	s := &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		botCfg:   p.BotConfig,
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
	for _, id := range p.Config.BootstrapAdmins {
		if err := s.ensureRole(id, RoleOwner); err != nil {
			return nil, fmt.Errorf("bootstrap owner %d: %w", id, err)
		}
	}
	return s, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID int64, object string, action string) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	// operators listed in bot.yml are owners for as long as the file says so
	if s.configOwner(userID) {
		return nil
	}

	allowed, err := s.enforcer.Enforce(subject(userID), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.Int64("user_id", userID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) IsAdmin(ctx context.Context, userID int64) bool {
	return s.Authorize(ctx, userID, ObjectPanel, ActionPanelView) == nil
}

func (s *ServiceImpl) IsOwner(ctx context.Context, userID int64) bool {
	return s.Authorize(ctx, userID, ObjectAdmins, ActionAdminsGrant) == nil
}

func (s *ServiceImpl) GrantAdmin(ctx context.Context, actorID int64, userID int64) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	if err := s.Authorize(ctx, actorID, ObjectAdmins, ActionAdminsGrant); err != nil {
		return err
	}
	if err := s.ensureRole(userID, RoleAdmin); err != nil {
		return err
	}
	s.audit(ctx, actorID, userID, auditdomain.ActionAdminGranted)
	return nil
}

func (s *ServiceImpl) RevokeAdmin(ctx context.Context, actorID int64, userID int64) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	if err := s.Authorize(ctx, actorID, ObjectAdmins, ActionAdminsGrant); err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveGroupingPolicy(subject(userID), RoleAdmin); err != nil {
		return err
	}
	s.audit(ctx, actorID, userID, auditdomain.ActionAdminRevoked)
	return nil
}

// Admins lists every user holding a role, including operators from bot.yml.
func (s *ServiceImpl) Admins(ctx context.Context) ([]int64, error) {
	seen := map[int64]struct{}{}
	if s.botCfg != nil {
		for _, id := range s.botCfg.Get().Admins {
			seen[id] = struct{}{}
		}
	}
	rules, err := s.enforcer.GetGroupingPolicy()
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if len(rule) < 2 {
			continue
		}
		id, ok := parseSubject(rule[0])
		if !ok {
			continue
		}
		seen[id] = struct{}{}
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *ServiceImpl) configOwner(userID int64) bool {
	return s.botCfg != nil && s.botCfg.Get().IsAdmin(userID)
}

func (s *ServiceImpl) ensureRole(userID int64, roleName string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject(userID), roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject(userID), roleName)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, actorID, userID int64, action string) {
	if s.auditSvc == nil {
		return
	}
	actor := strconv.FormatInt(actorID, 10)
	target := strconv.FormatInt(userID, 10)
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeAdmin), &actor, action, "user", &target, map[string]any{
		"role": RoleAdmin,
	}); err != nil {
		s.log.Warn("audit admin change failed", zap.Error(err))
	}
}

func subject(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func parseSubject(raw string) (int64, bool) {
	if !strings.HasPrefix(raw, "user:") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "user:"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Admin permissions
		{RoleAdmin, ObjectPanel, ActionPanelView},
		{RoleAdmin, ObjectCatalog, ActionCatalogManage},
		{RoleAdmin, ObjectBalance, ActionBalanceManage},
		{RoleAdmin, ObjectBroadcast, ActionBroadcastStart},

		// Owner permissions
		{RoleOwner, ObjectPanel, ActionPanelView},
		{RoleOwner, ObjectCatalog, ActionCatalogManage},
		{RoleOwner, ObjectBalance, ActionBalanceManage},
		{RoleOwner, ObjectBroadcast, ActionBroadcastStart},
		{RoleOwner, ObjectAdmins, ActionAdminsGrant},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
