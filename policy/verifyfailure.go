package policy

import (
	"math/big"
	"net/url"
	"strings"

	"github.com/mark3labs/agentkit"
)

// EIP3009Authorization mirrors the "authorization" half of an x402 EIP-3009
// transfer-with-authorization payment payload: the only fields the
// verify-failure hook needs to recover a payer and paid amount.
type EIP3009Authorization struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// Permit2Permitted mirrors Permit2's "permitted" amount field.
type Permit2Permitted struct {
	Amount string `json:"amount"`
}

// Permit2Authorization mirrors the "permit2Authorization" half of a Permit2
// payment payload.
type Permit2Authorization struct {
	From      string           `json:"from"`
	Permitted Permit2Permitted `json:"permitted"`
}

// PaymentPayload is the facilitator-supplied payload the verify-failure
// hook inspects. Exactly one of Authorization/Permit2Authorization is set,
// per spec §4.H's two recognized payload shapes.
type PaymentPayload struct {
	Resource             string                `json:"resource"`
	Authorization        *EIP3009Authorization `json:"authorization,omitempty"`
	Permit2Authorization *Permit2Authorization `json:"permit2Authorization,omitempty"`
}

// payerAndAmount extracts the payer address and paid amount from whichever
// payload shape is populated.
func (p PaymentPayload) payerAndAmount() (payer string, amount *big.Int, ok bool) {
	switch {
	case p.Authorization != nil:
		amount, ok = new(big.Int).SetString(p.Authorization.Value, 10)
		return p.Authorization.From, amount, ok
	case p.Permit2Authorization != nil:
		amount, ok = new(big.Int).SetString(p.Permit2Authorization.Permitted.Amount, 10)
		return p.Permit2Authorization.From, amount, ok
	default:
		return "", nil, false
	}
}

// Requirement is the declared payment requirement the verify-failure hook
// may mutate in place to recover a short-paid settlement.
type Requirement struct {
	Amount string // integer string
}

// VerifyFailureInput bundles the facilitator's callback arguments.
type VerifyFailureInput struct {
	Payload     PaymentPayload
	Requirement *Requirement
	Error       string // facilitator error, "<code>: <detail>"
}

// VerifyFailureResult reports the outcome of the verify-failure hook.
// Recovered is false for every "no decision" exit; Recovered true means
// the caller should re-run settlement against the mutated Requirement.
type VerifyFailureResult struct {
	Recovered bool
	IsValid   bool
	Payer     string
}

// underpaymentReasons is the facilitator error-code set spec §4.H step 4
// treats as "this was an underpayment, not some other failure" (spec §9 OQ3).
var underpaymentReasons = map[string]bool{
	"invalid_exact_evm_payload_authorization_value": true,
	"permit2_insufficient_amount":                    true,
	"insufficient_funds":                             true,
}

// reasonCode returns the substring of a facilitator error before its first
// colon (spec §9 OQ3's literal contract).
func reasonCode(err string) string {
	if idx := strings.IndexByte(err, ':'); idx >= 0 {
		return err[:idx]
	}
	return err
}

// VerifyFailureHook implements spec §4.H's discount-mode recovery callback.
// It is only meaningful when Hooks was constructed with a discount mode;
// any other mode returns the zero VerifyFailureResult unconditionally.
func (h *Hooks) VerifyFailureHook(input VerifyFailureInput) VerifyFailureResult {
	if h.mode.Kind != agentkit.ModeDiscount {
		return VerifyFailureResult{}
	}

	resourcePath, ok := resourcePath(input.Payload.Resource)
	if !ok {
		return VerifyFailureResult{}
	}

	payer, paidAmount, ok := input.Payload.payerAndAmount()
	if !ok {
		return VerifyFailureResult{}
	}

	rec, found := h.pending.take(resourcePath, payer, h.now())
	if !found {
		return VerifyFailureResult{}
	}

	if !underpaymentReasons[reasonCode(input.Error)] {
		return VerifyFailureResult{}
	}

	if !h.mode.Unbounded() {
		count := h.store.GetUsageCount(resourcePath, rec.humanID)
		if count >= h.mode.Uses {
			h.emit(agentkit.EventDiscountExhaust, resourcePath, payer, rec.humanID, nil)
			return VerifyFailureResult{}
		}
	}

	if input.Requirement == nil {
		return VerifyFailureResult{}
	}
	required, ok := new(big.Int).SetString(input.Requirement.Amount, 10)
	if !ok {
		return VerifyFailureResult{}
	}

	discounted := discountedAmount(required, h.mode.Percent)
	if paidAmount.Cmp(discounted) < 0 {
		return VerifyFailureResult{} // step 7: short payment beyond the permitted discount
	}
	if paidAmount.Cmp(required) >= 0 {
		return VerifyFailureResult{} // step 8: not actually an underpayment
	}

	h.store.IncrementUsage(resourcePath, rec.humanID)
	h.emit(agentkit.EventDiscountApplied, resourcePath, payer, rec.humanID, nil)
	input.Requirement.Amount = paidAmount.String()

	return VerifyFailureResult{Recovered: true, IsValid: true, Payer: payer}
}

// discountedAmount computes floor(required*(100-percent)/100).
func discountedAmount(required *big.Int, percent int) *big.Int {
	num := new(big.Int).Mul(required, big.NewInt(int64(100-percent)))
	return num.Div(num, big.NewInt(100))
}

func resourcePath(resourceURL string) (string, bool) {
	u, err := url.Parse(resourceURL)
	if err != nil || u.Path == "" {
		return "", false
	}
	return u.Path, true
}
