package simserver

import (
	"fmt"
	"math/rand"
	"time"

	"brilho/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DemoUsername is the well-known seeded account. Its password is "password".
const DemoUsername = "demo"

// Seed populates the simulator with demo data: a known login, n random
// accounts, a gift and frame catalog, follows, conversations and a handful
// of live streams. Idempotent: a populated database is left untouched.
func (s *Server) Seed(n int) error {
	var existing int64
	s.db.Model(&Account{}).Count(&existing)
	if existing > 0 {
		return nil
	}
	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	demo := Account{
		Username:    DemoUsername,
		DisplayName: "Demo",
		Password:    string(hash),
		AvatarURL:   fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
		Bio:         gofakeit.Sentence(8),
		Country:     "BR",
		Diamonds:    1000,
	}
	if err := s.db.Create(&demo).Error; err != nil {
		return err
	}

	accounts := make([]Account, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, Account{
			Username:    fmt.Sprintf("%s%d", gofakeit.Username(), i),
			DisplayName: gofakeit.Name(),
			Password:    string(hash),
			AvatarURL:   fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
			Bio:         gofakeit.Sentence(6),
			Country:     gofakeit.CountryAbr(),
			Fans:        r.Intn(5000),
			Following:   r.Intn(500),
			Diamonds:    r.Intn(2000),
			Earnings:    r.Intn(100000),
		})
	}
	if len(accounts) > 0 {
		if err := s.db.Create(&accounts).Error; err != nil {
			return err
		}
	}

	gifts := []GiftRow{
		{Name: "Rose", Price: 1},
		{Name: "Heart", Price: 5},
		{Name: "Teddy Bear", Price: 25},
		{Name: "Fireworks", Price: 100},
		{Name: "Sports Car", Price: 1000},
		{Name: "Castle", Price: 5000},
	}
	for i := range gifts {
		gifts[i].IconURL = fmt.Sprintf("https://picsum.photos/seed/gift-%d/64/64", i)
	}
	if err := s.db.Create(&gifts).Error; err != nil {
		return err
	}

	frames := []FrameRow{
		{Name: "Golden Glow", Price: 200, Days: 30},
		{Name: "Neon Pulse", Price: 350, Days: 30},
		{Name: "Royal Crown", Price: 800, Days: 90},
	}
	if err := s.db.Create(&frames).Error; err != nil {
		return err
	}

	// Social graph around the demo account.
	for _, acct := range accounts {
		if r.Intn(3) == 0 {
			s.db.Create(&FollowRow{ViewerID: demo.ID, TargetID: acct.ID})
		}
		if r.Intn(3) == 0 {
			s.db.Create(&FollowRow{ViewerID: acct.ID, TargetID: demo.ID})
		}
	}

	// A conversation with each mutual follow.
	mutual := s.followSet(demo.ID)
	for id := range mutual {
		if !s.follows(id, demo.ID) {
			continue
		}
		s.db.Create(&ConversationRow{
			UserID:        demo.ID,
			FriendID:      id,
			LastMessage:   gofakeit.Sentence(6),
			LastMessageAt: time.Now().Add(-time.Duration(r.Intn(72)) * time.Hour),
			Unread:        r.Intn(4),
		})
	}

	// Some hosts are live from the start.
	for i, acct := range accounts {
		if i >= 6 {
			break
		}
		s.db.Create(&StreamRow{
			HostID:    acct.ID,
			Title:     gofakeit.Sentence(4),
			IsPrivate: i == 5,
			IsLive:    true,
			Viewers:   r.Intn(200),
			StartedAt: time.Now().Add(-time.Duration(r.Intn(120)) * time.Minute),
		})
		s.db.Model(&Account{}).Where("id = ?", acct.ID).Update("is_live", true)
	}

	// A small ledger for the demo account.
	for i := 0; i < 3; i++ {
		s.db.Create(&PurchaseRow{
			ID:        uuid.NewString(),
			UserID:    demo.ID,
			Kind:      string(models.PurchaseKindDiamonds),
			Amount:    []int{100, 500, 1000}[i],
			Status:    string(models.PurchaseStatusConcluded),
			CreatedAt: time.Now().AddDate(0, 0, -i-1),
		})
	}
	return nil
}
