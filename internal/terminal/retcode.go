package terminal

// Trade server return codes, as defined by the MetaTrader 5 trade API.
const (
	RetcodeRequote         = 10004
	RetcodeReject          = 10006
	RetcodeCancel          = 10007
	RetcodePlaced          = 10008
	RetcodeDone            = 10009
	RetcodeDonePartial     = 10010
	RetcodeError           = 10011
	RetcodeTimeout         = 10012
	RetcodeInvalid         = 10013
	RetcodeInvalidVolume   = 10014
	RetcodeInvalidPrice    = 10015
	RetcodeInvalidStops    = 10016
	RetcodeTradeDisabled   = 10017
	RetcodeMarketClosed    = 10018
	RetcodeNoMoney         = 10019
	RetcodePriceChanged    = 10020
	RetcodePriceOff        = 10021
	RetcodeInvalidExpire   = 10022
	RetcodeOrderChanged    = 10023
	RetcodeTooManyRequests = 10024
	RetcodeNoChanges       = 10025
	RetcodeServerDisables  = 10026
	RetcodeClientDisables  = 10027
	RetcodeLocked          = 10028
	RetcodeFrozen          = 10029
	RetcodeInvalidFill     = 10030
	RetcodeConnection      = 10031
	RetcodeOnlyReal        = 10032
	RetcodeLimitOrders     = 10033
	RetcodeLimitVolume     = 10034
)

// retcodeDescriptions maps trade server return codes to human-readable
// descriptions. Static data, not control flow: callers branch on the code,
// never on the text.
var retcodeDescriptions = map[int]string{
	RetcodeRequote:         "requote",
	RetcodeReject:          "request rejected",
	RetcodeCancel:          "request canceled by trader",
	RetcodePlaced:          "order placed",
	RetcodeDone:            "request completed",
	RetcodeDonePartial:     "request completed partially",
	RetcodeError:           "request processing error",
	RetcodeTimeout:         "request canceled by timeout",
	RetcodeInvalid:         "invalid request",
	RetcodeInvalidVolume:   "invalid volume",
	RetcodeInvalidPrice:    "invalid price",
	RetcodeInvalidStops:    "invalid stops",
	RetcodeTradeDisabled:   "trading disabled",
	RetcodeMarketClosed:    "market closed",
	RetcodeNoMoney:         "insufficient funds",
	RetcodePriceChanged:    "price changed",
	RetcodePriceOff:        "no quotes to process request",
	RetcodeInvalidExpire:   "invalid order expiration",
	RetcodeOrderChanged:    "order state changed",
	RetcodeTooManyRequests: "too frequent requests",
	RetcodeNoChanges:       "no changes in request",
	RetcodeServerDisables:  "autotrading disabled by server",
	RetcodeClientDisables:  "autotrading disabled by client terminal",
	RetcodeLocked:          "request locked for processing",
	RetcodeFrozen:          "order or position frozen",
	RetcodeInvalidFill:     "invalid order filling type",
	RetcodeConnection:      "no connection with the trade server",
	RetcodeOnlyReal:        "operation allowed only for live accounts",
	RetcodeLimitOrders:     "pending order limit reached",
	RetcodeLimitVolume:     "order and position volume limit reached",
}

// RetcodeDescription returns the human-readable category for a trade server
// return code, or "unknown retcode" for codes not in the table.
func RetcodeDescription(code int) string {
	if desc, ok := retcodeDescriptions[code]; ok {
		return desc
	}
	return "unknown retcode"
}

// RetcodeSuccess reports whether the return code represents an executed
// request. Partial fills count: the terminal did open a position.
func RetcodeSuccess(code int) bool {
	return code == RetcodeDone || code == RetcodeDonePartial
}
