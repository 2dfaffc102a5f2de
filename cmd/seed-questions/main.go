package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/database"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/logger"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/repository"
	"github.com/stemsi/oralexam/internal/service"
)

type pack struct {
	id        string
	image     string
	questions []string
}

var part11Packs = []pack{
	{id: "hometown", questions: []string{
		"Where is your hometown?",
		"What do you like most about it?",
		"Would you like to live there in the future?",
	}},
	{id: "work-study", questions: []string{
		"Do you work or are you a student?",
		"Why did you choose that field?",
		"What would you like to change about your daily routine?",
	}},
}

var part12Packs = []pack{
	{id: "photo-park", image: "media/demo/park.jpg", questions: []string{
		"What can you see in this picture?",
		"How often do you visit places like this?",
		"Why do people enjoy spending time outdoors?",
	}},
	{id: "photo-market", image: "media/demo/market.jpg", questions: []string{
		"Describe what is happening in this picture.",
		"Do you prefer markets or supermarkets?",
		"How has shopping changed in your country?",
	}},
}

var part2Cards = []string{
	"Describe a teacher who influenced you. You should say who they were, what they taught, and explain why they were important to you.",
	"Describe a journey you remember well. You should say where you went, who you travelled with, and explain why it was memorable.",
	"Describe a skill you would like to learn. You should say what it is, how you would learn it, and explain why it matters to you.",
}

var part3Images = []string{
	"media/demo/city-traffic.jpg",
	"media/demo/classroom.jpg",
	"media/demo/farm.jpg",
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionService := service.NewQuestionService(repository.NewQuestionRepository(pool), log)

	fmt.Println("=== Seeding demo question bank ===")

	var reqs []model.AddQuestionRequest
	reqs = append(reqs, packRequests(1, part11Packs, 30)...)
	reqs = append(reqs, packRequests(2, part12Packs, 30)...)
	for _, text := range part2Cards {
		reqs = append(reqs, model.AddQuestionRequest{Part: 2, Text: text, ResponseTime: 120})
	}
	for _, image := range part3Images {
		reqs = append(reqs, model.AddQuestionRequest{Part: 3, ImagePath: image, ResponseTime: 90})
	}

	successCount := 0
	for i := range reqs {
		q, err := questionService.Create(ctx, &reqs[i])
		if err != nil {
			fmt.Printf("Error creating question %d (part %d.%d): %v\n", i+1, reqs[i].Part, reqs[i].SubPart, err)
			continue
		}
		successCount++
		fmt.Printf("Created %s question %s\n", examsession.PartLabel(q.Part, q.SubPart), q.ID)
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d questions.\n", successCount, len(reqs))
}

func packRequests(subPart int, packs []pack, responseTime int) []model.AddQuestionRequest {
	var out []model.AddQuestionRequest
	for _, p := range packs {
		for i, text := range p.questions {
			out = append(out, model.AddQuestionRequest{
				Part:         1,
				SubPart:      subPart,
				Text:         text,
				ImagePath:    p.image,
				PackID:       p.id,
				PackOrder:    i + 1,
				ResponseTime: responseTime,
			})
		}
	}
	return out
}
