package conversation

import "math/rand"

// happyWords seeds default conversation names so new chats are
// distinguishable without prompting the user for a name.
var happyWords = []string{
	"Puppy", "Kitten", "Bunny", "Butterfly", "Sunshine",
	"Rainbow", "Dolphin", "Paradise", "Giggles", "Frolic",
	"Chirp", "Snuggle", "Twinkle", "Whiskers", "Fluffy",
	"Honeybee", "Lambkin", "Peachy", "Meadow", "Carousel",
}

// DefaultName returns a randomly chosen suggested name for a new
// conversation, e.g. "Meadow Chat".
func DefaultName() string {
	return happyWords[rand.Intn(len(happyWords))] + " Chat"
}
