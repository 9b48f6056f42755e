package notify

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
)

// LarkConfig holds the messaging app credentials and the chat that
// receives review notifications.
type LarkConfig struct {
	AppID        string
	AppSecret    string
	ReviewChatID string
}

// LarkNotifier posts review-queue messages into a Lark group chat.
type LarkNotifier struct {
	client *lark.Client
	chatID string
	logger *zap.Logger
}

// NewLarkNotifier creates a new LarkNotifier
func NewLarkNotifier(cfg LarkConfig, logger *zap.Logger) *LarkNotifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return &LarkNotifier{
		client: client,
		chatID: cfg.ReviewChatID,
		logger: logger,
	}
}

// ExpensePendingReview posts a text message summarizing the expense
// awaiting review.
func (n *LarkNotifier) ExpensePendingReview(ctx context.Context, task *entity.Task, exp *entity.Expense) error {
	reason := ""
	if exp.Approval != nil {
		reason = exp.Approval.Reason
	}
	text := fmt.Sprintf("Expense pending review\nTask: %s (%s)\nAssignee: %s\nCategory: %s\nAmount: %.2f\n%s",
		task.Title, task.ID, task.Assignee, exp.Category, exp.EffectiveTotal(), reason)

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to build message content: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send review notification",
			zap.String("expense_id", exp.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		n.logger.Error("Messaging API returned failure",
			zap.String("expense_id", exp.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	n.logger.Info("Review notification sent",
		zap.String("expense_id", exp.ID),
		zap.String("chat_id", n.chatID))
	return nil
}
