// Package ldap implements the LDAP protocol operation model of RFC 4511:
// typed request and response structures, each reversibly convertible to and
// from its BER wire form.
package ldap

import "fmt"

// Application tag numbers assigned to protocol operations (RFC 4511 §4.1.1).
const (
	ApplicationBindRequest           = 0
	ApplicationBindResponse          = 1
	ApplicationUnbindRequest         = 2
	ApplicationSearchRequest         = 3
	ApplicationSearchResultEntry     = 4
	ApplicationSearchResultDone      = 5
	ApplicationModifyRequest         = 6
	ApplicationModifyResponse        = 7
	ApplicationAddRequest            = 8
	ApplicationAddResponse           = 9
	ApplicationDelRequest            = 10
	ApplicationDelResponse           = 11
	ApplicationModifyDNRequest       = 12
	ApplicationModifyDNResponse      = 13
	ApplicationCompareRequest        = 14
	ApplicationCompareResponse       = 15
	ApplicationAbandonRequest        = 16
	ApplicationSearchResultReference = 19
	ApplicationExtendedRequest       = 23
	ApplicationExtendedResponse      = 24
	ApplicationIntermediateResponse  = 25
)

// ResultCode is an LDAP result code (RFC 4511 Appendix A).
type ResultCode int

const (
	ResultSuccess                     ResultCode = 0
	ResultOperationsError             ResultCode = 1
	ResultProtocolError               ResultCode = 2
	ResultTimeLimitExceeded           ResultCode = 3
	ResultSizeLimitExceeded           ResultCode = 4
	ResultCompareFalse                ResultCode = 5
	ResultCompareTrue                 ResultCode = 6
	ResultAuthMethodNotSupported      ResultCode = 7
	ResultStrongerAuthRequired        ResultCode = 8
	ResultReferral                    ResultCode = 10
	ResultAdminLimitExceeded          ResultCode = 11
	ResultUnavailableCriticalExt      ResultCode = 12
	ResultSaslBindInProgress          ResultCode = 14
	ResultNoSuchAttribute             ResultCode = 16
	ResultUndefinedAttributeType      ResultCode = 17
	ResultInappropriateMatching       ResultCode = 18
	ResultConstraintViolation         ResultCode = 19
	ResultAttributeOrValueExists      ResultCode = 20
	ResultInvalidAttributeSyntax      ResultCode = 21
	ResultNoSuchObject                ResultCode = 32
	ResultAliasProblem                ResultCode = 33
	ResultInvalidDNSyntax             ResultCode = 34
	ResultInappropriateAuthentication ResultCode = 48
	ResultInvalidCredentials          ResultCode = 49
	ResultInsufficientAccessRights    ResultCode = 50
	ResultBusy                        ResultCode = 51
	ResultUnavailable                 ResultCode = 52
	ResultUnwillingToPerform          ResultCode = 53
	ResultLoopDetect                  ResultCode = 54
	ResultNamingViolation             ResultCode = 64
	ResultObjectClassViolation        ResultCode = 65
	ResultNotAllowedOnNonLeaf         ResultCode = 66
	ResultNotAllowedOnRDN             ResultCode = 67
	ResultEntryAlreadyExists          ResultCode = 68
	ResultObjectClassModsProhibited   ResultCode = 69
	ResultAffectsMultipleDSAs         ResultCode = 71
	ResultOther                       ResultCode = 80
)

var resultCodeNames = map[ResultCode]string{
	ResultSuccess:                     "success",
	ResultOperationsError:             "operationsError",
	ResultProtocolError:               "protocolError",
	ResultTimeLimitExceeded:           "timeLimitExceeded",
	ResultSizeLimitExceeded:           "sizeLimitExceeded",
	ResultCompareFalse:                "compareFalse",
	ResultCompareTrue:                 "compareTrue",
	ResultAuthMethodNotSupported:      "authMethodNotSupported",
	ResultStrongerAuthRequired:        "strongerAuthRequired",
	ResultReferral:                    "referral",
	ResultAdminLimitExceeded:          "adminLimitExceeded",
	ResultUnavailableCriticalExt:      "unavailableCriticalExtension",
	ResultSaslBindInProgress:          "saslBindInProgress",
	ResultNoSuchAttribute:             "noSuchAttribute",
	ResultUndefinedAttributeType:      "undefinedAttributeType",
	ResultInappropriateMatching:       "inappropriateMatching",
	ResultConstraintViolation:         "constraintViolation",
	ResultAttributeOrValueExists:      "attributeOrValueExists",
	ResultInvalidAttributeSyntax:      "invalidAttributeSyntax",
	ResultNoSuchObject:                "noSuchObject",
	ResultAliasProblem:                "aliasProblem",
	ResultInvalidDNSyntax:             "invalidDNSyntax",
	ResultInappropriateAuthentication: "inappropriateAuthentication",
	ResultInvalidCredentials:          "invalidCredentials",
	ResultInsufficientAccessRights:    "insufficientAccessRights",
	ResultBusy:                        "busy",
	ResultUnavailable:                 "unavailable",
	ResultUnwillingToPerform:          "unwillingToPerform",
	ResultLoopDetect:                  "loopDetect",
	ResultNamingViolation:             "namingViolation",
	ResultObjectClassViolation:        "objectClassViolation",
	ResultNotAllowedOnNonLeaf:         "notAllowedOnNonLeaf",
	ResultNotAllowedOnRDN:             "notAllowedOnRDN",
	ResultEntryAlreadyExists:          "entryAlreadyExists",
	ResultObjectClassModsProhibited:   "objectClassModsProhibited",
	ResultAffectsMultipleDSAs:         "affectsMultipleDSAs",
	ResultOther:                       "other",
}

func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("resultCode(%d)", int(c))
}

// Search scope values (RFC 4511 §4.5.1.2).
const (
	ScopeBaseObject   = 0
	ScopeSingleLevel  = 1
	ScopeWholeSubtree = 2
)

// Alias dereferencing policies (RFC 4511 §4.5.1.3).
const (
	DerefNever        = 0
	DerefInSearching  = 1
	DerefFindingBase  = 2
	DerefAlways       = 3
)

// Modify operation types (RFC 4511 §4.6).
const (
	ModAdd     = 0
	ModDelete  = 1
	ModReplace = 2
)

// Assigned extended operation OIDs.
const (
	NoticeOfDisconnectionOID = "1.3.6.1.4.1.1466.20036"
	WhoAmIOID                = "1.3.6.1.4.1.4203.1.11.3"
)
