package localize

import (
	"fmt"

	"github.com/cort/triage/internal/model"
)

func packageSelectionMessages(issue Issue, packageSummaries string) []model.Message {
	system := fmt.Sprintf(`You are an AI assistant that helps with software issue localization.

Following package summaries are available for your reference:

[PACKAGE-SUMMARIES-START]
%s
[PACKAGE-SUMMARIES-END]

You understand the issues raised and discussed by the user.
Analyze any code snippets provided.
Based on the package summaries above, identify the packages most relevant to the discussion.
And finally, return a list of high-level packages that you think are most relevant for the issue and discussion.

%s`, packageSummaries, relevantPackagesSchema.Instructions())

	return withConversation(system, issue)
}

func fileRankingMessages(issue Issue, packageDetails string) []model.Message {
	system := fmt.Sprintf(`You are an AI assistant that specializes in analysing issues, related discussion, and understanding code. You recommend files relevant to the issue and discussion.

Following relevant package details are available for your reference:

[PACKAGE-DETAILS-START]
%s
[PACKAGE-DETAILS-END]

You understand the issues raised and discussed by the user.
Analyze any code snippets provided.
Based on the package details above, suggest a list of files that you think are most relevant to the issue and discussion.
Each localization suggestion should include:
    - "package": Fully qualified package name.
    - "file": Name of the source file.
    - "confidence": A float between 0 and 1 with two decimal points indicating the confidence you have for this suggestion to be relevant to the issue.
    - "reason": Explanation of why you think it is relevant (not to exceed 50 tokens).

Return the suggestions sorted in descending order of confidence.

%s`, packageDetails, fileSuggestionsSchema.Instructions())

	return withConversation(system, issue)
}

// withConversation prepends the system message to the issue conversation,
// collapsing every non-user role to assistant.
func withConversation(system string, issue Issue) []model.Message {
	messages := make([]model.Message, 0, len(issue.Conversation)+1)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	for _, m := range issue.Conversation {
		role := model.RoleAssistant
		if m.Role == model.RoleUser {
			role = model.RoleUser
		}
		messages = append(messages, model.Message{Role: role, Content: m.Content})
	}
	return messages
}
