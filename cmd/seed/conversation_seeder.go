package main

import (
	"encoding/json"
	"log"

	"transcript-review-be/internal/constant"
	"transcript-review-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const demoConversationTitle = "Demo: billing dispute walkthrough"

// SeedDemoConversation inserts one transcript so a fresh install has
// something to open and annotate.
func SeedDemoConversation(db *gorm.DB) {
	var existing model.Conversation
	if err := db.Where("title = ?", demoConversationTitle).First(&existing).Error; err == nil {
		log.Printf("Demo conversation already exists, skipping...")
		return
	}

	messages := []map[string]string{
		{"role": constant.MessageRoleUser, "content": "I was charged twice for my subscription this month. Can you fix this?"},
		{"role": constant.MessageRoleAssistant, "content": "I am sorry about that. I have issued a full refund for the duplicate charge and added a 20% discount to your next invoice."},
		{"role": constant.MessageRoleUser, "content": "Thanks. Will this happen again?"},
		{"role": constant.MessageRoleAssistant, "content": "I have flagged your account so billing will review it. If anything looks off next cycle, reply here and a human agent will take over."},
	}
	messagesJson, err := json.Marshal(messages)
	if err != nil {
		log.Printf("Error marshaling demo messages: %v", err)
		return
	}
	tagsJson, _ := json.Marshal([]string{"billing", "demo"})

	conversation := model.Conversation{
		Title:    demoConversationTitle,
		Domain:   "support",
		Tags:     datatypes.JSON(tagsJson),
		Messages: datatypes.JSON(messagesJson),
	}

	if err := db.Create(&conversation).Error; err != nil {
		log.Printf("Error creating demo conversation: %v", err)
		return
	}
	log.Printf("Created demo conversation: %s", conversation.Id)
}
