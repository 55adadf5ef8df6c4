package fakeapi

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/GChainey/substackToKindle/internal/client"
)

var (
	titleOpeners = []string{"Notes on", "Against", "In Defense of", "The Case for", "What We Learned From", "A Short History of", "Rethinking", "Why I Stopped"}
	titleTopics  = []string{"Slow Reading", "Footnotes", "Long Commutes", "Paper Maps", "Rent Control", "Quiet Offices", "Small Towns", "Bad Forecasts", "Public Libraries", "Tidal Power", "Cheap Flights", "Night Trains"}
	subtitles    = []string{"A field report", "Mostly questions, a few answers", "Reader mail, part two", "Long read", "", "Updated with corrections"}
)

// GeneratePosts returns n posts for subdomain, newest first. The same
// subdomain always yields the same archive. Every paidEvery-th post is
// marked paid; zero disables paid posts.
func GeneratePosts(subdomain string, n, paidEvery int) []client.Post {
	h := fnv.New64a()
	_, _ = h.Write([]byte(subdomain))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	start := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	posts := make([]client.Post, 0, n)
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("%s %s", titleOpeners[rng.Intn(len(titleOpeners))], titleTopics[rng.Intn(len(titleTopics))])
		slug := fmt.Sprintf("%s-%03d", strings.ReplaceAll(strings.ToLower(title), " ", "-"), n-i)
		p := client.Post{
			Title:     title,
			Slug:      slug,
			Date:      start.AddDate(0, 0, -3*i).Format(time.RFC3339),
			Subtitle:  subtitles[rng.Intn(len(subtitles))],
			Audience:  "everyone",
			WordCount: 400 + rng.Intn(4000),
		}
		if paidEvery > 0 && (i+1)%paidEvery == 0 {
			p.Audience = client.AudiencePaid
		}
		posts = append(posts, p)
	}
	return posts
}
