package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/loanflow/internal/database"
	"github.com/BaSui01/loanflow/internal/models"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 👥 客户 Handler
// =============================================================================

// CustomerHandler 客户处理器。
// 信贷员只能看到自己名下的客户，主管只能看到本分支客户，管理员不受限。
type CustomerHandler struct {
	conn   database.Connector
	logger *zap.Logger
}

// NewCustomerHandler 创建处理器
func NewCustomerHandler(conn database.Connector, logger *zap.Logger) *CustomerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerHandler{conn: conn, logger: logger.With(zap.String("handler", "customer"))}
}

// customerFreeText 可直接覆盖的自由文本字段；空串即清空
var customerFreeText = map[string]func(c *models.Customer, v string){
	"address":       func(c *models.Customer, v string) { c.Address = v },
	"gender":        func(c *models.Customer, v string) { c.Gender = v },
	"maritalStatus": func(c *models.Customer, v string) { c.MaritalStatus = v },
	"profession":    func(c *models.Customer, v string) { c.Profession = v },
	"company":       func(c *models.Customer, v string) { c.Company = v },
	"city":          func(c *models.Customer, v string) { c.City = v },
	"state":         func(c *models.Customer, v string) { c.State = v },
	"country":       func(c *models.Customer, v string) { c.Country = v },
	"zipCode":       func(c *models.Customer, v string) { c.ZipCode = v },
	"note":          func(c *models.Customer, v string) { c.Note = v },
	"email":         func(c *models.Customer, v string) { c.Email = v },
}

// HandleList GET /customers?page=&limit=&search=&branchId=&officerId=
func (h *CustomerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := validated(r).Query
	page := pageFromQuery(query)
	c := callerFrom(r)

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	q := customerScope(db.Model(&models.Customer{}), c)
	if c.Role == string(models.RoleAdmin) {
		if v, ok := stringField(query, "branchId"); ok && v != "" {
			q = q.Where("branch_id = ?", v)
		}
	}
	if c.Role != string(models.RoleCreditOfficer) {
		if v, ok := stringField(query, "officerId"); ok && v != "" {
			q = q.Where("current_officer_id = ?", v)
		}
	}
	if v, ok := stringField(query, "search"); ok && v != "" {
		like := likePattern(v)
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	var customers []models.Customer
	if err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&customers).Error; err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, newListResult(customers, page, total))
}

// HandleGet GET /customers/{id}；范围外的客户按不存在处理
func (h *CustomerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	cust, err := findCustomer(customerScope(db, callerFrom(r)), pathID(r))
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, cust)
}

// HandleCreate POST /customers
func (h *CustomerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	c := callerFrom(r)

	cust := models.Customer{}
	cust.FirstName, _ = stringField(body, "firstName")
	cust.LastName, _ = stringField(body, "lastName")
	cust.Phone, _ = stringField(body, "phone")
	cust.BranchID, _ = stringField(body, "branchId")
	applyCustomerText(&cust, body)
	if dob, ok := timeField(body, "dateOfBirth"); ok {
		cust.DateOfBirth = &dob
	}
	if v, ok := stringField(body, "currentOfficerId"); ok && v != "" {
		cust.CurrentOfficerID = &v
	} else if c.Role == string(models.RoleCreditOfficer) {
		cust.CurrentOfficerID = &c.UserID
	}

	if c.Role != string(models.RoleAdmin) && cust.BranchID != c.BranchID {
		HandleError(w, r, forbidden("Customers can only be created in your own branch"), h.logger)
		return
	}

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ensureActiveBranch(tx, cust.BranchID); err != nil {
			return err
		}
		if cust.CurrentOfficerID != nil {
			if err := ensureOfficer(tx, *cust.CurrentOfficerID); err != nil {
				return err
			}
		}
		return tx.Create(&cust).Error
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	setResourceID(w, cust.ID)
	WriteCreated(w, r, "Customer created successfully", cust)
}

// HandleUpdate PUT /customers/{id}；firstName、lastName、phone 为空串时保持原值
func (h *CustomerHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	c := callerFrom(r)

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var updated models.Customer
	err := db.Transaction(func(tx *gorm.DB) error {
		cust, err := findCustomer(customerScope(tx, c), pathID(r))
		if err != nil {
			return err
		}
		if v, ok := stringField(body, "firstName"); ok && v != "" {
			cust.FirstName = v
		}
		if v, ok := stringField(body, "lastName"); ok && v != "" {
			cust.LastName = v
		}
		if v, ok := stringField(body, "phone"); ok && v != "" {
			cust.Phone = v
		}
		applyCustomerText(cust, body)
		if dob, ok := timeField(body, "dateOfBirth"); ok {
			cust.DateOfBirth = &dob
		}

		// 归属变更走 reassign 的校验规则
		branchID, branchSet := stringField(body, "branchId")
		officerID, officerSet := stringField(body, "currentOfficerId")
		if (branchSet && branchID != cust.BranchID) || (officerSet && officerID != deref(cust.CurrentOfficerID)) {
			if c.Role == string(models.RoleCreditOfficer) {
				return forbidden("Only supervisors can reassign customers")
			}
			if err := reassign(tx, cust, branchID, officerID); err != nil {
				return err
			}
		}

		if err := tx.Save(cust).Error; err != nil {
			return err
		}
		updated = *cust
		return nil
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}
	WriteMessage(w, r, "Customer updated successfully", updated)
}

// HandleReassign POST /customers/{id}/reassign（主管及以上）
func (h *CustomerHandler) HandleReassign(w http.ResponseWriter, r *http.Request) {
	body := validated(r).Body
	c := callerFrom(r)
	branchID, _ := stringField(body, "newBranchId")
	officerID, _ := stringField(body, "newOfficerId")
	reason, _ := stringField(body, "reason")

	db, ok := acquire(w, r, h.conn, h.logger)
	if !ok {
		return
	}

	var updated models.Customer
	var from models.Customer
	err := db.Transaction(func(tx *gorm.DB) error {
		cust, err := findCustomer(customerScope(tx, c), pathID(r))
		if err != nil {
			return err
		}
		from = *cust
		if c.Role == string(models.RoleSupervisor) && branchID != "" && branchID != c.BranchID {
			return forbidden("Supervisors can only reassign within their branch")
		}
		if err := reassign(tx, cust, branchID, officerID); err != nil {
			return err
		}
		if err := tx.Save(cust).Error; err != nil {
			return err
		}
		updated = *cust
		return nil
	})
	if err != nil {
		HandleError(w, r, err, h.logger)
		return
	}

	h.logger.Info("customer reassigned",
		zap.String("customer_id", updated.ID),
		zap.String("from_branch", from.BranchID),
		zap.String("to_branch", updated.BranchID),
		zap.String("from_officer", deref(from.CurrentOfficerID)),
		zap.String("to_officer", deref(updated.CurrentOfficerID)),
		zap.String("reason", reason),
		zap.String("by", c.UserID),
	)
	setResourceID(w, updated.ID)
	WriteMessage(w, r, "Customer reassigned successfully", updated)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// customerScope 按调用方角色限制可见客户
func customerScope(db *gorm.DB, c caller) *gorm.DB {
	switch models.Role(c.Role) {
	case models.RoleAdmin:
		return db
	case models.RoleSupervisor:
		return db.Where("branch_id = ?", c.BranchID)
	default:
		return db.Where("current_officer_id = ?", c.UserID)
	}
}

func findCustomer(db *gorm.DB, id string) (*models.Customer, error) {
	var cust models.Customer
	if err := db.First(&cust, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Customer")
		}
		return nil, err
	}
	return &cust, nil
}

func applyCustomerText(c *models.Customer, body map[string]any) {
	for key, set := range customerFreeText {
		if v, ok := stringField(body, key); ok {
			set(c, v)
		}
	}
}

// reassign 改变客户归属。只换分支时，原信贷员不属于新分支则解除。
func reassign(tx *gorm.DB, cust *models.Customer, branchID, officerID string) error {
	if branchID != "" && branchID != cust.BranchID {
		if err := ensureActiveBranch(tx, branchID); err != nil {
			return err
		}
		cust.BranchID = branchID
		if officerID == "" && cust.CurrentOfficerID != nil {
			var officer models.User
			err := tx.Select("branch_id").First(&officer, "id = ?", *cust.CurrentOfficerID).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if deref(officer.BranchID) != branchID {
				cust.CurrentOfficerID = nil
			}
		}
	}
	if officerID != "" {
		officer, err := activeOfficer(tx, officerID)
		if err != nil {
			return err
		}
		if officer.BranchID != nil && *officer.BranchID != cust.BranchID {
			return types.BadRequest("Officer does not belong to the customer's branch")
		}
		cust.CurrentOfficerID = &officer.ID
	}
	return nil
}

func ensureActiveBranch(db *gorm.DB, id string) error {
	b, err := findBranch(db, id)
	if err != nil {
		return err
	}
	if !b.IsActive {
		return types.BadRequest("Branch is inactive")
	}
	return nil
}

func ensureOfficer(db *gorm.DB, id string) error {
	_, err := activeOfficer(db, id)
	return err
}

func activeOfficer(db *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Officer")
		}
		return nil, err
	}
	if !u.IsActive || u.Role != models.RoleCreditOfficer {
		return nil, types.BadRequest("Assigned officer must be an active credit officer")
	}
	return &u, nil
}

func forbidden(message string) *types.Error {
	return types.NewError(types.ErrForbidden, message).WithHTTPStatus(http.StatusForbidden)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
