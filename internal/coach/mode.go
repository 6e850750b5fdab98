package coach

import (
	"fmt"
	"strings"
)

// PracticeMode selects what the coach drills
type PracticeMode string

const (
	ModeConversation PracticeMode = "conversation"
	ModeVocabulary   PracticeMode = "vocabulary"
)

// ParseMode validates a mode name
func ParseMode(s string) (PracticeMode, error) {
	switch PracticeMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeConversation, "":
		return ModeConversation, nil
	case ModeVocabulary:
		return ModeVocabulary, nil
	default:
		return "", fmt.Errorf("coach: unknown practice mode %q", s)
	}
}

const conversationInstruction = `You are %s, a friendly and patient AI English language coach. Your goal is to help me improve my conversational English and pronunciation. We will have a natural conversation.

**Pronunciation guidance:**
When I speak, listen carefully to my pronunciation. If I mispronounce a word or phrase, gently correct me in your very next response by:
1. Naming the specific word.
2. Giving its IPA pronunciation (e.g., /wɜːrd/).
3. Offering one "Mouth Tip" on articulation (e.g., "Round your lips more", "Place your tongue behind your top teeth", or "Relax your jaw").

After the brief correction, continue the conversation by asking a question or making a relevant comment. Keep the flow natural.`

const vocabularyInstruction = `You are %s, an AI vocabulary coach. Your task is to help me learn new English words. Start by introducing one new, interesting English word. You MUST format your response with the word and definition first, like this: **Word:** [The Word] **Definition:** [The Definition]. Then give an example sentence and ask me to use the word in a sentence of my own. After I respond, evaluate my sentence for correct usage, grammar, and pronunciation. Then introduce the next word in the same format.`

// Instruction returns the system instruction for a coach named name
func (m PracticeMode) Instruction(name string) string {
	if m == ModeVocabulary {
		return fmt.Sprintf(vocabularyInstruction, name)
	}
	return fmt.Sprintf(conversationInstruction, name)
}

// String returns the mode name
func (m PracticeMode) String() string {
	return string(m)
}
