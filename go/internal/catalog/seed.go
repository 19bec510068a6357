package catalog

// DefaultSongs is the built-in development catalog.
func DefaultSongs() []Song {
	return []Song{
		{
			ID:         "1",
			Title:      "Blinding Lights",
			Artist:     "The Weeknd",
			Duration:   200,
			Category:   "Pop",
			Difficulty: "easy",
			Plays:      1250000,
			Lyrics: []LyricLine{
				{Timestamp: 0, Text: "I can't sleep until I feel your touch"},
				{Timestamp: 3000, Text: "And I can't wake up without looking up at you"},
				{Timestamp: 6000, Text: "I'm blinded by the lights"},
				{Timestamp: 9000, Text: "No, I can't sleep until I feel your touch"},
				{Timestamp: 12000, Text: "And I can't wake up without looking up at you"},
				{Timestamp: 15000, Text: "I'm blinded by the lights"},
			},
		},
		{
			ID:         "2",
			Title:      "Bohemian Rhapsody",
			Artist:     "Queen",
			Duration:   354,
			Category:   "Rock",
			Difficulty: "hard",
			Plays:      890000,
			Lyrics: []LyricLine{
				{Timestamp: 0, Text: "Is this the real life? Is this just fantasy?"},
				{Timestamp: 4000, Text: "Caught in a landslide, no escape from reality"},
				{Timestamp: 8000, Text: "Open your eyes, look up to the skies and see"},
				{Timestamp: 12000, Text: "I'm just a poor boy, I need no sympathy"},
				{Timestamp: 16000, Text: "Because I'm easy come, easy go"},
				{Timestamp: 20000, Text: "Little high, little low, any way the wind blows"},
			},
		},
		{
			ID:         "3",
			Title:      "Shape of You",
			Artist:     "Ed Sheeran",
			Duration:   234,
			Category:   "Pop",
			Difficulty: "easy",
			Plays:      2100000,
			Lyrics: []LyricLine{
				{Timestamp: 0, Text: "The club isn't the best place to find a lover"},
				{Timestamp: 3000, Text: "So the bar is where I go"},
				{Timestamp: 6000, Text: "Me and my friends at the table doing shots"},
				{Timestamp: 9000, Text: "Drinking fast and then we talk slow"},
				{Timestamp: 12000, Text: "And you come over and play with my hair"},
				{Timestamp: 15000, Text: "And we fall into the mattress"},
			},
		},
		{
			ID:         "4",
			Title:      "Uptown Funk",
			Artist:     "Mark Ronson ft. Bruno Mars",
			Duration:   269,
			Category:   "Pop",
			Difficulty: "medium",
			Plays:      1800000,
			Lyrics: []LyricLine{
				{Timestamp: 0, Text: "This hit, that ice cold"},
				{Timestamp: 2000, Text: "Michelle Pfeiffer, that white gold"},
				{Timestamp: 4000, Text: "This one for them hood girls"},
				{Timestamp: 6000, Text: "Them good girls straight masterpieces"},
				{Timestamp: 8000, Text: "Stylin' while you're wildin'"},
				{Timestamp: 10000, Text: "Livin' it up in the city"},
			},
		},
		{
			ID:         "5",
			Title:      "Lose Yourself",
			Artist:     "Eminem",
			Duration:   326,
			Category:   "Hip-Hop",
			Difficulty: "hard",
			Plays:      1600000,
			Lyrics: []LyricLine{
				{Timestamp: 0, Text: "Yo, his palms are sweaty, knees weak, arms are heavy"},
				{Timestamp: 3000, Text: "There's vomit on his sweater already, mom's spaghetti"},
				{Timestamp: 6000, Text: "He's nervous, but on the surface looks calm and ready"},
				{Timestamp: 9000, Text: "To drop bombs, but he keeps on forgetting"},
				{Timestamp: 12000, Text: "What he wrote down, the whole line's so loud"},
				{Timestamp: 15000, Text: "He opens his mouth, but won't let spit out"},
			},
		},
		{
			ID:         "6",
			Title:      "Hallelujah",
			Artist:     "Leonard Cohen",
			Duration:   310,
			Category:   "Rock",
			Difficulty: "medium",
			Plays:      740000,
			Lyrics: []LyricLine{
				{Timestamp: 0, Text: "Now I've heard there was a secret chord"},
				{Timestamp: 4000, Text: "That David played, and it pleased the Lord"},
				{Timestamp: 8000, Text: "But you don't really care for music, do you?"},
				{Timestamp: 12000, Text: "It goes like this, the fourth, the fifth"},
				{Timestamp: 16000, Text: "The minor fall, the major lift"},
				{Timestamp: 20000, Text: "The baffled king composing Hallelujah"},
			},
		},
	}
}
