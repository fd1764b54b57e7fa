package service

import (
	"context"
	"errors"

	"chatcore/internal/access"
	"chatcore/internal/domain"
	"chatcore/internal/metrics"
)

type ReceiptService struct {
	messages domain.MessageRepository
	receipts domain.ReceiptRepository
	gate     *access.Gate
	rec      metrics.Recorder
}

func NewReceiptService(messages domain.MessageRepository, receipts domain.ReceiptRepository, gate *access.Gate, rec metrics.Recorder) *ReceiptService {
	return &ReceiptService{
		messages: messages,
		receipts: receipts,
		gate:     gate,
		rec:      rec,
	}
}

// MarkRead acknowledges a message for the caller and returns the receipt
// together with the id of the conversation the message belongs to. The
// caller must be a member of that conversation. A repeated ack hits the
// (message, user) unique constraint and is treated as already-acknowledged,
// not an error.
func (s *ReceiptService) MarkRead(ctx context.Context, callerID, messageID string) (*domain.ReadReceipt, string, error) {
	msg, err := s.member(ctx, callerID, messageID, "insert")
	if err != nil {
		return nil, "", err
	}

	receipt := &domain.ReadReceipt{
		MessageID: msg.ID,
		UserID:    callerID,
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			s.rec.RecordDuplicateAck()
			return receipt, msg.ConversationID, nil
		}
		return nil, "", err
	}
	return receipt, msg.ConversationID, nil
}

// ListForMessage returns who has read the message; members only.
func (s *ReceiptService) ListForMessage(ctx context.Context, callerID, messageID string) ([]*domain.ReadReceipt, error) {
	if _, err := s.member(ctx, callerID, messageID, "view"); err != nil {
		return nil, err
	}
	return s.receipts.ListForMessage(ctx, messageID)
}

// member resolves the message and gates on membership in its conversation.
func (s *ReceiptService) member(ctx context.Context, callerID, messageID, op string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.gate.RequireMember(ctx, msg.ConversationID, callerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.rec.RecordPolicyDenial("receipt", op)
		}
		return nil, err
	}
	return msg, nil
}
