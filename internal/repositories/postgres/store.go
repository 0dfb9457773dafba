package postgres

import (
	"zawj-chat/internal/repositories"

	"gorm.io/gorm"
)

// NewStore wires every gorm repository onto db.
func NewStore(db *gorm.DB) repositories.Store {
	return repositories.Store{
		Users:         NewUserRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		Connections:   NewConnectionRepository(db),
		Blocks:        NewBlockRepository(db),
		Reports:       NewReportRepository(db),
	}
}

var (
	_ repositories.UserRepository         = (*UserRepository)(nil)
	_ repositories.ConversationRepository = (*ConversationRepository)(nil)
	_ repositories.MessageRepository      = (*MessageRepository)(nil)
	_ repositories.ConnectionRepository   = (*ConnectionRepository)(nil)
	_ repositories.BlockRepository        = (*BlockRepository)(nil)
	_ repositories.ReportRepository       = (*ReportRepository)(nil)
)
