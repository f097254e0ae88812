package simserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Options{
		DBPath:    filepath.Join(t.TempDir(), "sim.db"),
		JWTSecret: testSecret,
	})
	require.NoError(t, err)
	return srv
}

func createAccount(t *testing.T, srv *Server, username string, diamonds, earnings int) Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	acct := Account{
		Username:    username,
		DisplayName: username,
		Password:    string(hash),
		Diamonds:    diamonds,
		Earnings:    earnings,
	}
	require.NoError(t, srv.DB().Create(&acct).Error)
	return acct
}

func tokenFor(t *testing.T, srv *Server, userID uint) string {
	t.Helper()
	token, err := IssueAuthToken(srv.opts.JWTSecret, userID)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp.StatusCode, parsed
}

func TestNewAcceptsDefaultRedisURL(t *testing.T) {
	// The stock config ships "redis://localhost:6379"; the client is lazy,
	// so construction must succeed whether or not Redis is running.
	srv, err := New(Options{
		DBPath:    filepath.Join(t.TempDir(), "sim.db"),
		RedisURL:  "redis://localhost:6379",
		JWTSecret: testSecret,
	})
	require.NoError(t, err)
	require.NotNil(t, srv.Hub())
}

func TestLoginIssuesUsableToken(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "alice", 100, 0)

	status, body := doJSON(t, srv, "POST", "/api/auth/login", "", fiber.Map{
		"username": "alice", "password": "password",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body = doJSON(t, srv, "GET", fmt.Sprintf("/api/users/%d", acct.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "alice", 0, 0)

	status, body := doJSON(t, srv, "POST", "/api/auth/login", "", fiber.Map{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	status, _ := doJSON(t, srv, "GET", "/api/users/1", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doJSON(t, srv, "GET", "/api/users/1", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestChannelTicketIsShortLivedType(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "alice", 0, 0)

	status, body := doJSON(t, srv, "POST", "/api/channel/ticket", tokenFor(t, srv, acct.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)

	userID, err := parseJWT(testSecret, ticket, "ws")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, userID)

	// A channel ticket is not usable as a bearer token.
	_, err = parseJWT(testSecret, ticket, "auth")
	assert.Error(t, err)
}

func TestFollowRoundTripUpdatesCounters(t *testing.T) {
	srv := newTestServer(t)
	alice := createAccount(t, srv, "alice", 0, 0)
	bob := createAccount(t, srv, "bob", 0, 0)
	token := tokenFor(t, srv, alice.ID)

	status, body := doJSON(t, srv, "POST", fmt.Sprintf("/api/users/%d/follow", bob.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["is_followed"])
	assert.EqualValues(t, 1, body["fans"])
	assert.EqualValues(t, 1, body["following"])

	// Following again is a no-op on the counters.
	status, body = doJSON(t, srv, "POST", fmt.Sprintf("/api/users/%d/follow", bob.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["fans"])

	status, body = doJSON(t, srv, "DELETE", fmt.Sprintf("/api/users/%d/follow", bob.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["is_followed"])
	assert.EqualValues(t, 0, body["fans"])
	assert.EqualValues(t, 0, body["following"])
}

func TestFollowSelfIsRejected(t *testing.T) {
	srv := newTestServer(t)
	alice := createAccount(t, srv, "alice", 0, 0)
	status, _ := doJSON(t, srv, "POST", fmt.Sprintf("/api/users/%d/follow", alice.ID), tokenFor(t, srv, alice.ID), nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUserListsReflectFollowGraph(t *testing.T) {
	srv := newTestServer(t)
	alice := createAccount(t, srv, "alice", 0, 0)
	bob := createAccount(t, srv, "bob", 0, 0)
	carol := createAccount(t, srv, "carol", 0, 0)

	// alice follows bob and carol; bob follows alice back.
	require.NoError(t, srv.DB().Create(&FollowRow{ViewerID: alice.ID, TargetID: bob.ID}).Error)
	require.NoError(t, srv.DB().Create(&FollowRow{ViewerID: alice.ID, TargetID: carol.ID}).Error)
	require.NoError(t, srv.DB().Create(&FollowRow{ViewerID: bob.ID, TargetID: alice.ID}).Error)

	token := tokenFor(t, srv, alice.ID)

	status, body := doJSON(t, srv, "GET", "/api/users/lists/following", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["users"], 2)

	status, body = doJSON(t, srv, "GET", "/api/users/lists/fans", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["users"], 1)

	status, body = doJSON(t, srv, "GET", "/api/users/lists/friends", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	users := body["users"].([]interface{})
	require.Len(t, users, 1)
	friend := users[0].(map[string]interface{})
	assert.Equal(t, "bob", friend["username"])

	status, _ = doJSON(t, srv, "GET", "/api/users/lists/bogus", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStreamLifecycle(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 0)
	token := tokenFor(t, srv, host.ID)

	status, body := doJSON(t, srv, "POST", "/api/streams/", token, fiber.Map{"title": "hello"})
	require.Equal(t, fiber.StatusOK, status)
	streamer := body["streamer"].(map[string]interface{})
	roomID := uint(streamer["id"].(float64))
	assert.Equal(t, "hello", streamer["title"])

	// A second broadcast while live conflicts.
	status, _ = doJSON(t, srv, "POST", "/api/streams/", token, fiber.Map{"title": "again"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = doJSON(t, srv, "GET", "/api/streams/", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["streamers"], 1)

	status, _ = doJSON(t, srv, "POST", fmt.Sprintf("/api/streams/%d/end", roomID), token, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = doJSON(t, srv, "GET", "/api/streams/", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["streamers"])

	var acct Account
	require.NoError(t, srv.DB().First(&acct, host.ID).Error)
	assert.False(t, acct.IsLive)
}

func TestEndStreamRequiresHost(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 0)
	other := createAccount(t, srv, "other", 0, 0)

	_, body := doJSON(t, srv, "POST", "/api/streams/", tokenFor(t, srv, host.ID), fiber.Map{"title": "x"})
	roomID := uint(body["streamer"].(map[string]interface{})["id"].(float64))

	status, _ := doJSON(t, srv, "POST", fmt.Sprintf("/api/streams/%d/end", roomID), tokenFor(t, srv, other.ID), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestSendGiftMovesBalances(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 0)
	viewer := createAccount(t, srv, "viewer", 100, 0)
	require.NoError(t, srv.DB().Create(&GiftRow{Name: "Rose", Price: 30}).Error)

	_, body := doJSON(t, srv, "POST", "/api/streams/", tokenFor(t, srv, host.ID), fiber.Map{"title": "x"})
	roomID := uint(body["streamer"].(map[string]interface{})["id"].(float64))

	status, body := doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/gifts", roomID), tokenFor(t, srv, viewer.ID), fiber.Map{
		"gift_id": 1, "count": 2,
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 40, body["diamonds"])
	assert.EqualValues(t, 60, body["coins"])

	var hostRow Account
	require.NoError(t, srv.DB().First(&hostRow, host.ID).Error)
	assert.Equal(t, 60, hostRow.Earnings)

	status, body = doJSON(t, srv, "GET", fmt.Sprintf("/api/users/%d/gifts", host.ID), tokenFor(t, srv, viewer.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	gifts := body["gifts"].([]interface{})
	require.Len(t, gifts, 1)
	assert.EqualValues(t, 2, gifts[0].(map[string]interface{})["count"])
}

func TestSendGiftRejectsInsufficientBalance(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 0)
	viewer := createAccount(t, srv, "viewer", 10, 0)
	require.NoError(t, srv.DB().Create(&GiftRow{Name: "Rose", Price: 30}).Error)

	_, body := doJSON(t, srv, "POST", "/api/streams/", tokenFor(t, srv, host.ID), fiber.Map{"title": "x"})
	roomID := uint(body["streamer"].(map[string]interface{})["id"].(float64))

	status, body := doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/gifts", roomID), tokenFor(t, srv, viewer.ID), fiber.Map{
		"gift_id": 1,
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Insufficient diamond balance", body["message"])

	var acct Account
	require.NoError(t, srv.DB().First(&acct, viewer.ID).Error)
	assert.Equal(t, 10, acct.Diamonds)
}

func TestPrivateRoomAccess(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 0)
	friend := createAccount(t, srv, "friend", 0, 0)
	stranger := createAccount(t, srv, "stranger", 0, 0)
	require.NoError(t, srv.DB().Create(&FollowRow{ViewerID: host.ID, TargetID: friend.ID}).Error)

	_, body := doJSON(t, srv, "POST", "/api/streams/", tokenFor(t, srv, host.ID), fiber.Map{
		"title": "x", "is_private": true,
	})
	roomID := uint(body["streamer"].(map[string]interface{})["id"].(float64))

	status, body := doJSON(t, srv, "GET", fmt.Sprintf("/api/rooms/%d/access", roomID), tokenFor(t, srv, friend.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["allowed"])

	status, body = doJSON(t, srv, "GET", fmt.Sprintf("/api/rooms/%d/access", roomID), tokenFor(t, srv, stranger.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, "This room is private", body["message"])

	status, _ = doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/join", roomID), tokenFor(t, srv, stranger.ID), nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	// Leave succeeds no matter what.
	status, _ = doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/leave", roomID), tokenFor(t, srv, stranger.ID), nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRoomControlsAreHostOnly(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 0)
	viewer := createAccount(t, srv, "viewer", 0, 0)

	_, body := doJSON(t, srv, "POST", "/api/streams/", tokenFor(t, srv, host.ID), fiber.Map{"title": "x"})
	roomID := uint(body["streamer"].(map[string]interface{})["id"].(float64))

	status, _ := doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/mic", roomID), tokenFor(t, srv, viewer.ID), fiber.Map{"muted": true})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/mic", roomID), tokenFor(t, srv, host.ID), fiber.Map{"muted": true})
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doJSON(t, srv, "POST", fmt.Sprintf("/api/rooms/%d/kick/%d", roomID, viewer.ID), tokenFor(t, srv, viewer.ID), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestWithdrawalStartsPending(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 500)
	token := tokenFor(t, srv, host.ID)

	status, body := doJSON(t, srv, "POST", "/api/wallet/withdrawals", token, fiber.Map{"amount": 200})
	require.Equal(t, fiber.StatusOK, status)
	record := body["record"].(map[string]interface{})
	assert.Equal(t, "withdrawal", record["kind"])
	assert.Equal(t, "Pendente", record["status"])

	var acct Account
	require.NoError(t, srv.DB().First(&acct, host.ID).Error)
	assert.Equal(t, 300, acct.Earnings)

	status, body = doJSON(t, srv, "GET", "/api/wallet/purchases", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["records"], 1)
}

func TestWithdrawalRejectsOverdraft(t *testing.T) {
	srv := newTestServer(t)
	host := createAccount(t, srv, "host", 0, 100)

	status, body := doJSON(t, srv, "POST", "/api/wallet/withdrawals", tokenFor(t, srv, host.ID), fiber.Map{"amount": 200})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Insufficient earnings balance", body["message"])
}

func TestPurchaseFrameChargesDiamonds(t *testing.T) {
	srv := newTestServer(t)
	buyer := createAccount(t, srv, "buyer", 500, 0)
	require.NoError(t, srv.DB().Create(&FrameRow{Name: "Golden Glow", Price: 200, Days: 30}).Error)

	status, body := doJSON(t, srv, "POST", "/api/frames/1/purchase", tokenFor(t, srv, buyer.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	user := body["user"].(map[string]interface{})
	assert.EqualValues(t, 300, user["diamonds"])

	var owned []OwnedFrameRow
	require.NoError(t, srv.DB().Where("user_id = ?", buyer.ID).Find(&owned).Error)
	require.Len(t, owned, 1)
	assert.Equal(t, uint(1), owned[0].FrameID)
}

func TestSeedIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Seed(5))
	var first int64
	srv.DB().Model(&Account{}).Count(&first)
	require.Greater(t, first, int64(0))

	require.NoError(t, srv.Seed(5))
	var second int64
	srv.DB().Model(&Account{}).Count(&second)
	assert.Equal(t, first, second)

	var demo Account
	require.NoError(t, srv.DB().Where("username = ?", DemoUsername).First(&demo).Error)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(demo.Password), []byte("password")))
}

func TestHubPresenceFallsBackToMemory(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Register(1, nil)
	b := hub.Register(2, nil)

	hub.JoinRoom(a, 100)
	hub.JoinRoom(a, 100) // idempotent
	hub.JoinRoom(b, 100)
	assert.Equal(t, 2, hub.RoomViewers(100))

	hub.LeaveRoom(a, 100)
	assert.Equal(t, 1, hub.RoomViewers(100))

	hub.Unregister(b)
	assert.Equal(t, 0, hub.RoomViewers(100))
}
