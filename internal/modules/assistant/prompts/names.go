package prompts

import "github.com/yungbote/maigie-backend/internal/modules/assistant/intent"

type PromptName string

const (
	PromptDirectAnswer PromptName = "direct_answer"
	PromptRetrieval    PromptName = "retrieval_answer"
	PromptAction       PromptName = "action"
)

func nameForPath(p intent.Path) (PromptName, bool) {
	switch p {
	case intent.PathDirectAnswer:
		return PromptDirectAnswer, true
	case intent.PathRetrieval:
		return PromptRetrieval, true
	case intent.PathAction:
		return PromptAction, true
	default:
		return "", false
	}
}
