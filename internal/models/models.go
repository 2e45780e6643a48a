package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================================================
// 🏷️ 枚举
// =============================================================================

// Role 用户角色
type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleSupervisor    Role = "SUPERVISOR"
	RoleCreditOfficer Role = "CREDIT_OFFICER"
)

// RoleNames 全部角色（声明顺序）
func RoleNames() []string {
	return []string{string(RoleAdmin), string(RoleSupervisor), string(RoleCreditOfficer)}
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleCreditOfficer:
		return true
	}
	return false
}

// TermUnit 贷款期限单位
type TermUnit string

const (
	TermDay   TermUnit = "DAY"
	TermWeek  TermUnit = "WEEK"
	TermMonth TermUnit = "MONTH"
)

// TermUnitNames 全部期限单位
func TermUnitNames() []string {
	return []string{string(TermDay), string(TermWeek), string(TermMonth)}
}

// =============================================================================
// 🗃️ 表模型
// =============================================================================

// Base 公共字段；ID 在写入前自动生成 UUID
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate gorm 钩子
func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// User 员工账号
type User struct {
	Base
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	Role         Role           `gorm:"size:32;not null" json:"role"`
	FirstName    string         `gorm:"size:100" json:"firstName"`
	LastName     string         `gorm:"size:100" json:"lastName"`
	Phone        string         `gorm:"size:50" json:"phone"`
	Address      string         `gorm:"size:255" json:"address"`
	ProfileImage string         `gorm:"size:512" json:"profileImage,omitempty"`
	BranchID     *string        `gorm:"size:36;index" json:"branchId"`
	IsActive     bool           `gorm:"not null" json:"isActive"`
	LastLoginAt  *time.Time     `json:"lastLoginAt,omitempty"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Branch 分支机构
type Branch struct {
	Base
	Name      string         `gorm:"size:150;not null" json:"name"`
	Code      string         `gorm:"size:10;uniqueIndex;not null" json:"code"`
	ManagerID *string        `gorm:"size:36" json:"managerId"`
	IsActive  bool           `gorm:"not null" json:"isActive"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LoanType 贷款产品
type LoanType struct {
	Base
	Name        string         `gorm:"size:150;not null" json:"name"`
	Description string         `gorm:"size:1000" json:"description"`
	MinAmount   float64        `gorm:"type:decimal(15,2);not null" json:"minAmount"`
	MaxAmount   float64        `gorm:"type:decimal(15,2);not null" json:"maxAmount"`
	TermUnit    TermUnit       `gorm:"size:10;not null" json:"termUnit"`
	MinTerm     int            `gorm:"not null" json:"minTerm"`
	MaxTerm     int            `gorm:"not null" json:"maxTerm"`
	IsActive    bool           `gorm:"not null" json:"isActive"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// RangeError 区间上下限不一致；Field 为出错的上限字段
type RangeError struct {
	Field   string
	Message string
}

func (e *RangeError) Error() string { return e.Message }

// CheckRange 校验金额与期限区间的一致性
func (lt *LoanType) CheckRange() error {
	if lt.MaxAmount <= lt.MinAmount {
		return &RangeError{Field: "maxAmount", Message: "Maximum amount must be greater than minimum amount"}
	}
	if lt.MaxTerm < lt.MinTerm {
		return &RangeError{Field: "maxTerm", Message: "Maximum term must be greater than or equal to minimum term"}
	}
	return nil
}

// AcceptsPrincipal 判断本金是否落在产品区间内
func (lt *LoanType) AcceptsPrincipal(amount float64) error {
	if amount < lt.MinAmount || amount > lt.MaxAmount {
		return fmt.Errorf("Principal amount must be between %.2f and %.2f", lt.MinAmount, lt.MaxAmount)
	}
	return nil
}

// AcceptsTerm 判断期限是否落在产品区间内
func (lt *LoanType) AcceptsTerm(term int) error {
	if term < lt.MinTerm || term > lt.MaxTerm {
		return fmt.Errorf("Term must be between %d and %d %s", lt.MinTerm, lt.MaxTerm, lt.TermUnit)
	}
	return nil
}

// Customer 客户（合作社成员）
type Customer struct {
	Base
	FirstName        string         `gorm:"size:100;not null" json:"firstName"`
	LastName         string         `gorm:"size:100;not null" json:"lastName"`
	Phone            string         `gorm:"size:50;not null" json:"phone"`
	Email            string         `gorm:"size:255" json:"email"`
	Address          string         `gorm:"size:255" json:"address"`
	DateOfBirth      *time.Time     `json:"dateOfBirth,omitempty"`
	Gender           string         `gorm:"size:20" json:"gender"`
	MaritalStatus    string         `gorm:"size:20" json:"maritalStatus"`
	Profession       string         `gorm:"size:100" json:"profession"`
	Company          string         `gorm:"size:150" json:"company"`
	City             string         `gorm:"size:100" json:"city"`
	State            string         `gorm:"size:100" json:"state"`
	Country          string         `gorm:"size:100" json:"country"`
	ZipCode          string         `gorm:"size:20" json:"zipCode"`
	Note             string         `gorm:"size:1000" json:"note"`
	BranchID         string         `gorm:"size:36;index;not null" json:"branchId"`
	CurrentOfficerID *string        `gorm:"size:36;index" json:"currentOfficerId"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// AuditLog 审计记录
type AuditLog struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ActorUserID *string   `gorm:"size:36;index" json:"actorUserId"`
	Action      string    `gorm:"size:64;index;not null" json:"action"`
	EntityName  string    `gorm:"size:64;not null" json:"entityName"`
	EntityID    string    `gorm:"size:36" json:"entityId"`
	Metadata    string    `gorm:"type:text" json:"metadata,omitempty"`
	IPAddress   string    `gorm:"size:64" json:"ipAddress"`
	UserAgent   string    `gorm:"size:512" json:"userAgent"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate gorm 钩子
func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// All 返回全部模型，供 AutoMigrate 与测试使用
func All() []any {
	return []any{&User{}, &Branch{}, &LoanType{}, &Customer{}, &AuditLog{}}
}
