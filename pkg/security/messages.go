package security

import "fmt"

// LoginMessage is the text a wallet signs to answer an auth challenge
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("FarmLink login\naddress: %s\nnonce: %s", address, nonce)
}

// MilestoneProofMessage is the text a farmer signs when submitting milestone proof
func MilestoneProofMessage(projectAddress string, index int, proofCID string) string {
	return fmt.Sprintf("FarmLink milestone proof\nproject: %s\nmilestone: %d\nproof: %s", projectAddress, index, proofCID)
}

// MilestoneReleaseMessage is the text the platform signs to authorize a tranche release
func MilestoneReleaseMessage(projectAddress string, index int, amount, proofCID string) string {
	return fmt.Sprintf("FarmLink milestone release\nproject: %s\nmilestone: %d\namount: %s\nproof: %s", projectAddress, index, amount, proofCID)
}
