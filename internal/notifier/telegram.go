package notifier

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/config"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// TelegramNotifier 把达到阈值的盘口移动推送到Telegram。
// 告警失败只记日志，绝不影响采集主流程
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	minMove float64
	logger  *logrus.Logger
}

// NewTelegramNotifier 创建Telegram告警器，token未配置时返回 (nil, nil) 表示禁用
func NewTelegramNotifier(cfg *config.TelegramConfig, logger *logrus.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		logger.Info("Telegram未配置，盘口移动告警已禁用")
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("创建Telegram bot失败: %w", err)
	}
	minMove := cfg.MinMove
	if minMove <= 0 {
		minMove = 0.5
	}
	return &TelegramNotifier{
		bot:     bot,
		chatID:  cfg.ChatID,
		minMove: minMove,
		logger:  logger,
	}, nil
}

// NotifyMovement 盘口线移动达到阈值时发送告警；价格独立变化不告警
func (n *TelegramNotifier) NotifyMovement(mv *model.OddsMovement, game *model.Game, bookName string) {
	if n == nil || mv.MovementSize == nil || *mv.MovementSize < n.minMove {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, n.formatMovement(mv, game, bookName))
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.WithError(err).Warn("Telegram告警发送失败")
	}
}

func (n *TelegramNotifier) formatMovement(mv *model.OddsMovement, game *model.Game, bookName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "盘口移动: %s @ %s\n", game.AwayTeam, game.HomeTeam)
	fmt.Fprintf(&b, "%s %s/%s\n", bookName, mv.MarketType, mv.Selection)
	if mv.OldLine != nil && mv.NewLine != nil {
		fmt.Fprintf(&b, "线: %.1f → %.1f (幅度 %.1f)\n", *mv.OldLine, *mv.NewLine, *mv.MovementSize)
	}
	if mv.OldPrice != nil && mv.NewPrice != nil {
		fmt.Fprintf(&b, "价: %+d → %+d", *mv.OldPrice, *mv.NewPrice)
	}
	return b.String()
}
