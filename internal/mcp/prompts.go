package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts registers the four memory workflow prompts.
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "memory_usage_guide",
		Description: "How to use the memory tools effectively",
	}, func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return userPrompt("Guide to using agent memory", memoryUsageGuide), nil
	})

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "remember_conversation",
		Description: "Save the key points of the current conversation to memory",
		Arguments: []*mcp.PromptArgument{
			{Name: "topic", Description: "What the conversation was about", Required: true},
			{Name: "key_points", Description: "The main points to remember", Required: false},
		},
	}, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		topic := req.Params.Arguments["topic"]
		keyPoints := req.Params.Arguments["key_points"]
		text := fmt.Sprintf(rememberConversationTemplate, topic, keyPoints)
		return userPrompt("Save this conversation to memory", text), nil
	})

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "recall_context",
		Description: "Recall everything relevant to a topic from memory",
		Arguments: []*mcp.PromptArgument{
			{Name: "topic", Description: "The topic to recall", Required: true},
		},
	}, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		topic := req.Params.Arguments["topic"]
		text := fmt.Sprintf(recallContextTemplate, topic, topic)
		return userPrompt("Recall relevant memory", text), nil
	})

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "active_memory_usage",
		Description: "Instructions for keeping memory current throughout a session",
	}, func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return userPrompt("Keep memory current", activeMemoryUsage), nil
	})
}

// userPrompt wraps a text block as a single user-role prompt message.
func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}

const memoryUsageGuide = `You have a persistent memory service. Use it to carry
context across sessions.

Structure:
- main.md is your index: goals, completed tasks, future plans, recent
  notes, and a File Index linking every memory file.
- Specialized files live under category directories: projects/,
  concepts/, conversations/, preferences/, others/.

Working with memory:
1. At the start of a session, read memory://main and search for
   anything related to the task at hand.
2. Store durable knowledge in specialized files via files(create);
   keep main.md for state that changes often (goals, notes).
3. Prefer edit and tags over rewriting whole files.
4. Use search before assuming you do not know something - hybrid
   search finds content by meaning as well as keywords.
5. Record decisions and preferences as soon as you learn them; do not
   wait for the end of the session.`

const rememberConversationTemplate = `Summarize and save this conversation to memory.

Topic: %s
Key points: %s

Steps:
1. Create a file in the conversations category titled after the topic,
   containing a structured summary: context, decisions made, and open
   follow-ups.
2. Tag it with the main subjects so it is easy to find later.
3. If any durable preferences or facts surfaced, store them in the
   preferences or concepts category instead of the conversation file.
4. Add a line to main.md Recent Notes linking the summary.`

const recallContextTemplate = `Recall what you know about: %s

Steps:
1. Search memory for "%s" (hybrid mode) and review the top hits.
2. Read the most relevant files fully with files(read).
3. Check main.md Current Goals and Recent Notes for related state.
4. Summarize what you found and note anything that looks outdated so
   it can be corrected.`

const activeMemoryUsage = `Keep memory current while you work.

- When a goal is set, record it: main(goal, add). When it is done,
  complete it so it moves to Completed Tasks with the date.
- When you learn something reusable - a preference, a constraint, a
  design decision - write it to the right category file immediately.
- When information changes, edit the existing file rather than adding
  a contradicting note elsewhere.
- Before answering questions about prior work, search memory first.
- Writes are indexed asynchronously; a write followed immediately by a
  search may not see the new content yet (sync_pending).`
