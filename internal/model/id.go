package model

import "github.com/google/uuid"

func newMessageID() string {
	return uuid.New().String()
}
