package proto

// Client-to-server actions.
const (
	ActionRegister      = "REGISTER"
	ActionLogin         = "LOGIN"
	ActionFriendRequest = "FRIEND_REQUEST"
	ActionAcceptFriend  = "ACCEPT_FRIEND"
	ActionSendDM        = "SEND_DM"
	ActionGetFriends    = "GET_FRIENDS"
	ActionBlockUser     = "BLOCK_USER"
	ActionUnblockUser   = "UNBLOCK_USER"
	ActionGetBlocked    = "GET_BLOCKED"
	ActionGetHistory    = "GET_HISTORY"
	ActionCreateServer  = "CREATE_SERVER"
	ActionJoinServer    = "JOIN_SERVER"
	ActionLeaveServer   = "LEAVE_SERVER"
	ActionServerMsg     = "SERVER_MSG"
	ActionListServers   = "LIST_SERVERS"
	ActionServerMembers = "SERVER_MEMBERS"
)

// Server-to-client event tags.
const (
	TagRegisterOK        = "REGISTER_OK"
	TagRegisterFailed    = "REGISTER_FAILED"
	TagLoginOK           = "LOGIN_OK"
	TagLoginFailed       = "LOGIN_FAILED"
	TagError             = "ERROR"
	TagFriendRequest     = "FRIEND_REQUEST"
	TagFriendRequestSent = "FRIEND_REQUEST_SENT"
	TagFriendAdded       = "FRIEND_ADDED"
	TagDM                = "DM"
	TagDMDelivered       = "DM_DELIVERED"
	TagStatus            = "STATUS"
	TagFriends           = "FRIENDS"
	TagBlocked           = "BLOCKED"
	TagUnblocked         = "UNBLOCKED"
	TagBlockedList       = "BLOCKED_LIST"
	TagHistory           = "HISTORY"
	TagServerCreated     = "SERVER_CREATED"
	TagServerJoined      = "SERVER_JOINED"
	TagServerLeft        = "SERVER_LEFT"
	TagServerMsg         = "SERVER_MSG"
	TagServers           = "SERVERS"
	TagMembers           = "MEMBERS"
	TagNewServer         = "NEW_SERVER"
)

// Failure reasons carried by REGISTER_FAILED / LOGIN_FAILED.
const (
	ReasonUserExists    = "USER_EXISTS"
	ReasonBadFormat     = "BAD_FORMAT"
	ReasonInvalid       = "INVALID"
	ReasonNoSuchUser    = "NO_SUCH_USER"
	ReasonBadPassword   = "BAD_PASSWORD"
	ReasonAlreadyOnline = "ALREADY_ONLINE"
)

// Presence states carried by STATUS.
const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)
