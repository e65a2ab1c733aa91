package refwatcher

import "fmt"

// HelpTopic is the help command topic this component answers to.
const HelpTopic = "redmine_urls"

// Help returns the help text for a subtopic of redmine_urls. nick is the
// bot's own nick, used in the query example. Unknown subtopics return "".
func Help(topic, nick string) string {
	switch topic {
	case "":
		return "Redmine_urls: Convert common Redmine WikiSyntax references into URLs. " +
			"I will watch the channel for likely references (see subtopic " +
			"'general'), and also respond to specific requests (see " +
			"subtopic 'queries')."
	case "general":
		return "I can convert common references into URLs when I " +
			"see them mentioned in conversation.  Currently supports " +
			"[NNN], rNNN => revision URL; changeset:NNN|SHA => revision URL; " +
			"#NN => bug URL; wiki:CamelCase => wiki URL.  " +
			"URLs are verified before they're sent to the channel, to limit noise.  " +
			"I will not respond to general references if you are talking to me directly!  " +
			"See subtopic 'queries' for help with direct querying."
	case "queries":
		return fmt.Sprintf("You can ask me to lookup some info about a Redmine bug, "+
			"changeset, or wiki page.  I'll give you the URL and the title "+
			"of the bug or page, or the commit message of a changeset.  "+
			"You must address me directly to get a response.  "+
			"Example: '%s: redmineinfo #93' will produce a URL and the ticket's title.", nick)
	default:
		return ""
	}
}
