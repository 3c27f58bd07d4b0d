package tutor

import (
	"encoding/json"
	"fmt"
)

var replies = []string{
	"Good thinking. Walk me through how you got there.",
	"Close! Check the second step again.",
	"Exactly right. Let's try a slightly harder one.",
	"Take your time. What do we know so far?",
}

var problems = []json.RawMessage{
	json.RawMessage(`{"prompt":"What is 3/4 + 1/8?","choices":["7/8","4/12","1/2","5/8"],"answer_index":0}`),
	json.RawMessage(`{"prompt":"Round 4,572 to the nearest hundred.","choices":["4,500","4,600","4,570","5,000"],"answer_index":1}`),
	json.RawMessage(`{"prompt":"Which fraction is equivalent to 2/3?","choices":["4/6","3/4","2/6","6/8"],"answer_index":0}`),
}

var passages = []json.RawMessage{
	json.RawMessage(`{"title":"The Lighthouse","words":["The","keeper","climbed","the","spiral","stairs"],"level":2}`),
	json.RawMessage(`{"title":"A Seed Grows","words":["First","the","seed","needs","water","and","sun"],"level":1}`),
}

func scene(subject string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"background": "classroom",
		"caption":    fmt.Sprintf("Today: %s", subject),
	})
	return b
}
