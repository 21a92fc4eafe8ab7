package cli

import "quizwiz-service/internal/domain"

// sampleQuestions is the built-in General Knowledge pool used when no
// question bank is configured, and the seed for an empty one.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is the capital of Australia?", Answers: []string{"Sydney", "Melbourne", "Canberra", "Perth"}, CorrectAnswerIndex: 2},
		{Text: "Which planet is known as the Red Planet?", Answers: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectAnswerIndex: 1},
		{Text: "How many continents are there?", Answers: []string{"5", "6", "7", "8"}, CorrectAnswerIndex: 2},
		{Text: "What is the chemical symbol for gold?", Answers: []string{"Ag", "Au", "Gd", "Go"}, CorrectAnswerIndex: 1},
		{Text: "Who painted the Mona Lisa?", Answers: []string{"Leonardo da Vinci", "Michelangelo", "Raphael", "Donatello"}, CorrectAnswerIndex: 0},
		{Text: "What is the largest ocean on Earth?", Answers: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectAnswerIndex: 3},
		{Text: "In which year did the first person walk on the Moon?", Answers: []string{"1965", "1969", "1972", "1959"}, CorrectAnswerIndex: 1},
		{Text: "What is the smallest prime number?", Answers: []string{"0", "1", "2", "3"}, CorrectAnswerIndex: 2},
		{Text: "Which gas do plants absorb from the atmosphere?", Answers: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, CorrectAnswerIndex: 2},
		{Text: "What is the longest river in South America?", Answers: []string{"Amazon", "Paraná", "Orinoco", "Magdalena"}, CorrectAnswerIndex: 0},
		{Text: "How many sides does a hexagon have?", Answers: []string{"5", "6", "7", "8"}, CorrectAnswerIndex: 1},
		{Text: "Which language has the most native speakers?", Answers: []string{"English", "Spanish", "Hindi", "Mandarin Chinese"}, CorrectAnswerIndex: 3},
		{Text: "What is the hardest natural substance?", Answers: []string{"Quartz", "Diamond", "Granite", "Topaz"}, CorrectAnswerIndex: 1},
		{Text: "Which country gifted the Statue of Liberty to the United States?", Answers: []string{"United Kingdom", "Spain", "France", "Italy"}, CorrectAnswerIndex: 2},
		{Text: "What is the boiling point of water at sea level in Celsius?", Answers: []string{"90", "100", "110", "120"}, CorrectAnswerIndex: 1},
		{Text: "Who wrote \"Romeo and Juliet\"?", Answers: []string{"Charles Dickens", "Jane Austen", "William Shakespeare", "Mark Twain"}, CorrectAnswerIndex: 2},
		{Text: "What is the currency of Japan?", Answers: []string{"Yuan", "Won", "Yen", "Ringgit"}, CorrectAnswerIndex: 2},
		{Text: "Which organ pumps blood through the human body?", Answers: []string{"Lungs", "Liver", "Kidneys", "Heart"}, CorrectAnswerIndex: 3},
		{Text: "What is the tallest mountain in the world?", Answers: []string{"K2", "Mount Everest", "Kangchenjunga", "Mont Blanc"}, CorrectAnswerIndex: 1},
		{Text: "How many minutes are in a full day?", Answers: []string{"1,440", "1,200", "2,400", "3,600"}, CorrectAnswerIndex: 0},
		{Text: "Which element has the atomic number 1?", Answers: []string{"Helium", "Oxygen", "Hydrogen", "Carbon"}, CorrectAnswerIndex: 2},
		{Text: "What is the largest mammal?", Answers: []string{"African elephant", "Blue whale", "Giraffe", "Sperm whale"}, CorrectAnswerIndex: 1},
	}
}
