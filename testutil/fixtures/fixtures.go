// Package fixtures 为 handler 测试准备数据。
package fixtures

import (
	"testing"

	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/models"
)

// Branch 创建一个启用的分支
func Branch(t *testing.T, db *gorm.DB, name, code string) *models.Branch {
	t.Helper()
	b := &models.Branch{Name: name, Code: code, IsActive: true}
	mustCreate(t, db, b)
	return b
}

// User 创建一个启用的用户；密码哈希为占位值
func User(t *testing.T, db *gorm.DB, email string, role models.Role, branchID *string) *models.User {
	t.Helper()
	u := &models.User{
		Email:        email,
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderpla",
		Role:         role,
		FirstName:    "Test",
		LastName:     string(role),
		BranchID:     branchID,
		IsActive:     true,
	}
	mustCreate(t, db, u)
	return u
}

// LoanType 创建一个贷款产品
func LoanType(t *testing.T, db *gorm.DB, name string, minAmount, maxAmount float64, minTerm, maxTerm int) *models.LoanType {
	t.Helper()
	lt := &models.LoanType{
		Name:      name,
		MinAmount: minAmount,
		MaxAmount: maxAmount,
		TermUnit:  models.TermMonth,
		MinTerm:   minTerm,
		MaxTerm:   maxTerm,
		IsActive:  true,
	}
	mustCreate(t, db, lt)
	return lt
}

// Customer 创建一个客户
func Customer(t *testing.T, db *gorm.DB, first, last, branchID string, officerID *string) *models.Customer {
	t.Helper()
	c := &models.Customer{
		FirstName:        first,
		LastName:         last,
		Phone:            "+250700000000",
		BranchID:         branchID,
		CurrentOfficerID: officerID,
	}
	mustCreate(t, db, c)
	return c
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create fixture %T: %v", v, err)
	}
}
