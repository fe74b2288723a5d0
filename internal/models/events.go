package models

// Realtime event names. These are the wire contract clients implement; the
// arrows in comments show direction relative to the server.
const (
	EventUserOnline              = "userOnline"              // client -> server
	EventUpdateOnlineUsers       = "updateOnlineUsers"       // server -> all
	EventUserLastSeen            = "userLastSeen"            // server -> all
	EventJoinRoom                = "joinRoom"                // client -> server
	EventTyping                  = "typing"                  // relayed verbatim
	EventStopTyping              = "stopTyping"              // relayed verbatim
	EventSendMessage             = "sendMessage"             // client -> server
	EventReceiveMessage          = "receiveMessage"          // server -> room
	EventMessageSentConfirmation = "messageSentConfirmation" // server -> sender
	EventMessageDelivered        = "messageDelivered"        // both directions
	EventMessageRead             = "messageRead"             // both directions
	EventEditMessage             = "editMessage"             // client -> server
	EventMessageEdited           = "messageEdited"           // server -> room
	EventDeleteMessage           = "deleteMessage"           // client -> server
	EventMessageDeleted          = "messageDeleted"          // server -> room
	EventVoiceCallOffer          = "voiceCallOffer"          // client -> server
	EventIncomingVoiceCall       = "incomingVoiceCall"       // server -> callee
	EventReconnect               = "reconnect"               // client -> server
	EventAck                     = "ack"                     // server -> caller
)
