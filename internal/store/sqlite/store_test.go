package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/store/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return db
}

func signup(t *testing.T, db *sql.DB, email, displayName string) *domain.Profile {
	t.Helper()
	repo := sqlite.NewIdentityRepo(db)
	ident := &domain.Identity{Email: email, HashedPassword: "x"}
	profile := &domain.Profile{DisplayName: displayName}
	require.NoError(t, repo.CreateWithProfile(context.Background(), ident, profile))
	return profile
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, sqlite.Migrate(db))
}

func TestSignupCreatesExactlyOneProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := signup(t, db, "alice@example.com", "Alice")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Alice", p.DisplayName)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = ?`, p.ID).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := sqlite.NewProfileRepo(db).GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.DisplayName)
}

func TestSignupDisplayNameFallsBackToEmail(t *testing.T) {
	db := openTestDB(t)

	p := signup(t, db, "bob@example.com", "")
	assert.Equal(t, "bob@example.com", p.DisplayName)
}

func TestSignupDuplicateEmailLeavesNoProfileBehind(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := sqlite.NewIdentityRepo(db)

	signup(t, db, "carol@example.com", "Carol")

	ident := &domain.Identity{Email: "carol@example.com", HashedPassword: "y"}
	err := repo.CreateWithProfile(ctx, ident, &domain.Profile{})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestConversationCreateInsertsCreatorMembership(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	convRepo := sqlite.NewConversationRepo(db)
	conv := &domain.Conversation{Kind: domain.KindGroup}
	require.NoError(t, convRepo.Create(ctx, conv, alice.ID))

	ok, err := sqlite.NewMembershipRepo(db).Exists(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMembershipUniquePerConversationAndUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")
	bob := signup(t, db, "bob@example.com", "Bob")

	convRepo := sqlite.NewConversationRepo(db)
	conv := &domain.Conversation{Kind: domain.KindGroup}
	require.NoError(t, convRepo.Create(ctx, conv, alice.ID))

	memberRepo := sqlite.NewMembershipRepo(db)
	require.NoError(t, memberRepo.Create(ctx, &domain.Membership{ConversationID: conv.ID, UserID: bob.ID}))

	err := memberRepo.Create(ctx, &domain.Membership{ConversationID: conv.ID, UserID: bob.ID})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestMembershipInsertAgainstMissingConversation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	err := sqlite.NewMembershipRepo(db).Create(ctx, &domain.Membership{
		ConversationID: "no-such-conversation",
		UserID:         alice.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestMembershipDeleteAbsentRow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	convRepo := sqlite.NewConversationRepo(db)
	conv := &domain.Conversation{Kind: domain.KindDirect}
	require.NoError(t, convRepo.Create(ctx, conv, alice.ID))

	err := sqlite.NewMembershipRepo(db).Delete(ctx, conv.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMessageInsertRequiresExistingConversation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	err := sqlite.NewMessageRepo(db).Create(ctx, &domain.Message{
		ConversationID: "no-such-conversation",
		SenderID:       alice.ID,
		Content:        "hello",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestReceiptDuplicateIsUniquenessViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	convRepo := sqlite.NewConversationRepo(db)
	conv := &domain.Conversation{Kind: domain.KindDirect}
	require.NoError(t, convRepo.Create(ctx, conv, alice.ID))

	msgRepo := sqlite.NewMessageRepo(db)
	msg := &domain.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "hi"}
	require.NoError(t, msgRepo.Create(ctx, msg))

	receiptRepo := sqlite.NewReceiptRepo(db)
	first := &domain.ReadReceipt{MessageID: msg.ID, UserID: alice.ID}
	require.NoError(t, receiptRepo.Create(ctx, first))

	second := &domain.ReadReceipt{MessageID: msg.ID, UserID: alice.ID}
	err := receiptRepo.Create(ctx, second)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	receipts, err := receiptRepo.ListForMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
	assert.Equal(t, first.ID, receipts[0].ID)
}

func TestSweepOrphansRemovesOnlyMembershiplessConversations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	convRepo := sqlite.NewConversationRepo(db)

	orphan := &domain.Conversation{Kind: domain.KindGroup}
	require.NoError(t, convRepo.CreateDetached(ctx, orphan))

	kept := &domain.Conversation{Kind: domain.KindGroup}
	require.NoError(t, convRepo.Create(ctx, kept, alice.ID))

	time.Sleep(10 * time.Millisecond)
	n, err := convRepo.SweepOrphans(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := convRepo.GetByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	still, err := convRepo.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := signup(t, db, "alice@example.com", "Alice")

	convRepo := sqlite.NewConversationRepo(db)
	first := &domain.Conversation{Kind: domain.KindGroup}
	require.NoError(t, convRepo.Create(ctx, first, alice.ID))
	second := &domain.Conversation{Kind: domain.KindGroup}
	require.NoError(t, convRepo.Create(ctx, second, alice.ID))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, convRepo.Touch(ctx, first.ID))

	convs, err := convRepo.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, first.ID, convs[0].ID)
}
