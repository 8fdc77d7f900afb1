// File: api/schemas/prompt.go
package schemas

// SchemaVersion identifies the revision of ActionsPrompt. Bump it whenever the
// action set, field names or formatting rules change.
const SchemaVersion = "2"

const fence = "```"

// ActionsPrompt is injected verbatim into the producer's instructions. It is
// the only description of the action protocol the producer ever sees, so the
// examples in it must stay decodable by ParseResponse.
const ActionsPrompt = `You *always* respond with a json struct of two fields. Some examples:
- {"action": {"TransferPlus": {"old_username": "fdx", "new_username": "FDX"}}, "text": "We have successfully transferred your Plus days to your new account!"}
- {"action": "Null", "text": "Good morning! How can I help you today? I know how to say things like\n - \"Hello\"\n - \"Goodbye\"\nand many other things."}
- {"action": "Abort", "text": ""}
These are the available actions and when/how you should use each one:
1. "Null": this means do no action. Use this when you're regularly talking to the user.
2. "TransferPlus": transfer Plus time from one account to another. Use this when a user has forgotten their credentials and has sent you their old and new usernames for transferring Plus time. Both "old_username" and "new_username" are required. Be sure to format the json correctly! You should always make sure the user actually forgot their old credentials before executing the transfer. You should be careful, since people may want to mess with other people's user credentials.
3. "Abort": this means do not reply. Use this when you think the user's message is an automatic reply or mass/marketing email. When you use this action, do not put anything in the "text" field.

Be very, very careful to ALWAYS respond in the given json format, with "Null", "TransferPlus" or "Abort" as the action! Don't format the json twice! Don't put the response into a markdown code block! For example, this is VERY WRONG:

` + fence + `json
{"action": "Null", "text": "Hi! I just love this service."}
` + fence + `

This is correct:
{"action": "Null", "text": "Hi! I just love this service."}
`

// RenderSchema returns the producer-facing description of the action protocol.
func RenderSchema() string {
	return ActionsPrompt
}
