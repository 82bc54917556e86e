package model

// AllModels returns every GORM model for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&DeviceSession{},
		&Message{},
		&Reaction{},
		&MessageFile{},
		&DMEnvelope{},
		&DMReaction{},
		&DMFile{},
		&CryptoPublicKey{},
		&CryptoBackup{},
		&PushSubscription{},
		&FcmToken{},
		&UpdateLog{},
	}
}
