package app

import (
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
)

type Repos struct {
	User         repos.UserRepo
	UserToken    repos.UserTokenRepo
	Metric       repos.ComplianceMetricRepo
	Record       repos.UserComplianceRecordRepo
	Trigger      repos.ProgressionTriggerRepo
	Transition   repos.RoleTransitionRequestRepo
	Notification repos.NotificationRepo
	Audit        repos.RoleAuditLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		User:         repos.NewUserRepo(db, log),
		UserToken:    repos.NewUserTokenRepo(db, log),
		Metric:       repos.NewComplianceMetricRepo(db, log),
		Record:       repos.NewUserComplianceRecordRepo(db, log),
		Trigger:      repos.NewProgressionTriggerRepo(db, log),
		Transition:   repos.NewRoleTransitionRequestRepo(db, log),
		Notification: repos.NewNotificationRepo(db, log),
		Audit:        repos.NewRoleAuditLogRepo(db, log),
	}
}
