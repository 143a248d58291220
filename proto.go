package extchannel

// Every message starts with one of these bytes
const (
	ToServerHello uint8 = iota + 0x01
	ToServerChat
	ToServerSyncCheck
	ToServerAdminSrpA
	ToServerAdminSrpM
)

const (
	ToClientAccessDenied uint8 = iota + 0x80
	ToClientHello
	ToClientChat
	ToClientIdentity
	ToClientLeave
	ToClientAdminSrpSB
	ToClientAdminAccept
	ToClientAdminDeny
	ToClientPause
	ToClientSyncRequest
)

// Reasons sent with ToClientAccessDenied
const (
	AccessDeniedTooManyUsers uint8 = iota
	AccessDeniedBanned
	AccessDeniedFlood
	AccessDeniedDesync
	AccessDeniedUnexpectedData
	AccessDeniedShutdown
	AccessDeniedCrash
	AccessDeniedCustomString
)

var accessDeniedMsgs = map[uint8]string{
	AccessDeniedTooManyUsers:   "The server is full.",
	AccessDeniedBanned:         "You are banned.",
	AccessDeniedFlood:          "You were kicked for flooding.",
	AccessDeniedDesync:         "You were kicked because your game is out of sync.",
	AccessDeniedUnexpectedData: "Unexpected data.",
	AccessDeniedShutdown:       "The server is shutting down.",
	AccessDeniedCrash:          "The server crashed.",
}

// AccessDeniedMsg returns the text for an access denied reason
func AccessDeniedMsg(reason uint8, custom string) string {
	if reason == AccessDeniedCustomString || custom != "" {
		return custom
	}
	return accessDeniedMsgs[reason]
}

// ServerSlot is the sender slot of chat messages from the server itself
const ServerSlot = 0xFF
