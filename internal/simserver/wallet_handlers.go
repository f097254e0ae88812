package simserver

import (
	"time"

	"brilho/internal/events"
	"brilho/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// settlementDelay simulates the gap between filing a withdrawal and the
// server settling it via push.
const settlementDelay = 2 * time.Second

// PurchaseHistory returns the viewer's wallet ledger, newest first.
func (s *Server) PurchaseHistory(c *fiber.Ctx) error {
	var rows []PurchaseRow
	if err := s.db.Where("user_id = ?", viewerID(c)).
		Order("created_at DESC").Find(&rows).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load purchases")
	}
	records := make([]models.PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return ok(c, fiber.Map{"records": records})
}

type withdrawalRequest struct {
	Amount int `json:"amount"`
}

// RequestWithdrawal files an earnings withdrawal. The entry starts pending
// and settles later via a pushed transactionUpdate.
func (s *Server) RequestWithdrawal(c *fiber.Ctx) error {
	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Amount <= 0 {
		return fail(c, fiber.StatusBadRequest, "Invalid withdrawal amount")
	}

	var acct Account
	if err := s.db.First(&acct, viewerID(c)).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unknown viewer")
	}
	if acct.Earnings < req.Amount {
		return fail(c, fiber.StatusBadRequest, "Insufficient earnings balance")
	}
	acct.Earnings -= req.Amount
	s.db.Save(&acct)

	row := PurchaseRow{
		ID:        uuid.NewString(),
		UserID:    acct.ID,
		Kind:      string(models.PurchaseKindWithdrawal),
		Amount:    req.Amount,
		Status:    string(models.PurchaseStatusPending),
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to file withdrawal")
	}

	s.hub.SendUser(acct.ID, events.EventUserUpdate, events.UserUpdate{User: acct.toUser(false)})
	go s.settleWithdrawal(row.ID, acct.ID)

	return ok(c, fiber.Map{"record": row.toRecord()})
}

func (s *Server) settleWithdrawal(purchaseID string, userID uint) {
	time.Sleep(settlementDelay)
	var row PurchaseRow
	if err := s.db.First(&row, "id = ?", purchaseID).Error; err != nil {
		return
	}
	row.Status = string(models.PurchaseStatusConcluded)
	if err := s.db.Save(&row).Error; err != nil {
		return
	}
	s.hub.SendUser(userID, events.EventTransactionUpdate, events.TransactionUpdate{
		Record: row.toRecord(),
	})
}

// PurchaseFrame buys an avatar frame with diamonds.
func (s *Server) PurchaseFrame(c *fiber.Ctx) error {
	frameID, err := paramUint(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid frame id")
	}
	var frame FrameRow
	if err := s.db.First(&frame, frameID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Frame not found")
	}
	var acct Account
	if err := s.db.First(&acct, viewerID(c)).Error; err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unknown viewer")
	}
	if acct.Diamonds < frame.Price {
		return fail(c, fiber.StatusBadRequest, "Insufficient diamond balance")
	}

	acct.Diamonds -= frame.Price
	s.db.Save(&acct)

	owned := OwnedFrameRow{UserID: acct.ID, FrameID: frame.ID}
	s.db.Where(&OwnedFrameRow{UserID: acct.ID, FrameID: frame.ID}).FirstOrCreate(&owned)
	owned.ExpiresAt = time.Now().AddDate(0, 0, frame.Days)
	s.db.Save(&owned)

	row := PurchaseRow{
		ID:        uuid.NewString(),
		UserID:    acct.ID,
		Kind:      string(models.PurchaseKindFrame),
		Amount:    frame.Price,
		Status:    string(models.PurchaseStatusConcluded),
		CreatedAt: time.Now(),
	}
	s.db.Create(&row)
	s.hub.SendUser(acct.ID, events.EventTransactionUpdate, events.TransactionUpdate{
		Record: row.toRecord(),
	})

	u := acct.toUser(false)
	s.attachFrames(&u)
	s.hub.SendUser(acct.ID, events.EventUserUpdate, events.UserUpdate{User: u})
	return ok(c, fiber.Map{"user": u})
}
