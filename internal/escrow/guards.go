package escrow

import "fmt"

// MinVerificationPhotos is the evidence floor for completing verification.
const MinVerificationPhotos = 3

// GuardResult is the outcome of a guard predicate evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Err converts the guard result to an error if not allowed.
func (r GuardResult) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanCheckIn requires both trade parties to be physically present at the
// shop. It does not look at session status; callers combine it with the
// transition check.
func CanCheckIn(buyerPresent, sellerPresent bool) GuardResult {
	if !buyerPresent && !sellerPresent {
		return GuardResult{Reason: "both buyer and seller must be present for check-in"}
	}
	if !buyerPresent {
		return GuardResult{Reason: "buyer must be present for check-in"}
	}
	if !sellerPresent {
		return GuardResult{Reason: "seller must be present for check-in"}
	}
	return GuardResult{Allowed: true}
}

// CanCompleteVerification requires at least MinVerificationPhotos photos of
// evidence before verification may pass.
func CanCompleteVerification(photoCount int) GuardResult {
	if photoCount < MinVerificationPhotos {
		return GuardResult{Reason: fmt.Sprintf(
			"verification requires at least %d photos, got %d", MinVerificationPhotos, photoCount)}
	}
	return GuardResult{Allowed: true}
}
