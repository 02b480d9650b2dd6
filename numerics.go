package main

// Numeric reply codes used by the router/command handlers, per RFC 2812
// the standard IRC numerics plus the 705/706 extensions.
const (
	rplWelcome       = "001"
	rplYourHost      = "002"
	rplCreated       = "003"
	rplMyInfo        = "004"
	rplLUserClient   = "251"
	rplLUserOp       = "252"
	rplLUserChannels = "254"
	rplLUserMe       = "255"
	rplAway          = "301"
	rplWhoisUser     = "311"
	rplWhoisServer   = "312"
	rplWhoisOperator = "313"
	rplEndOfWho      = "315"
	rplWhoisIdle     = "317"
	rplEndOfWhois    = "318"
	rplWhoisChannels = "319"
	rplListStart     = "321"
	rplList          = "322"
	rplListEnd       = "323"
	rplChannelModeIs = "324"
	rplNoTopic       = "331"
	rplTopic         = "332"
	rplInviting      = "341"
	rplWhoReply      = "352"
	rplNameReply     = "353"
	rplLinks         = "364"
	rplEndOfLinks    = "365"
	rplEndOfNames    = "366"
	rplBanList       = "367"
	rplEndOfBanList  = "368"
	rplMotd          = "372"
	rplMotdStart     = "375"
	rplEndOfMotd     = "376"
	rplYoureOper     = "381"
	rplHelpTxt       = "705"
	rplEndOfHelp     = "706"

	errNoSuchNick      = "401"
	errNoSuchChannel   = "403"
	errCannotSendToChan = "404"
	errUnknownCommand  = "421"
	errNoMotd          = "422"
	errNoNickGiven     = "431"
	errErroneusNick    = "432"
	errNicknameInUse   = "433"
	errNotOnChannel    = "442"
	errNotRegistered   = "451"
	errNeedMoreParams  = "461"
	errAlreadyRegistered = "462"
	errPasswdMismatch  = "464"
	errYoureBannedCreep = "465"
	errKeySet          = "467"
	errChannelIsFull   = "471"
	errInviteOnlyChan  = "473"
	errBannedFromChan  = "474"
	errBadChannelKey   = "475"
	errNoPrivileges    = "481"
	errChanOpPrivsNeeded = "482"
	errUModeUnknownFlag = "501"
)
