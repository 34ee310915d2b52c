package exemplar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CampaignExemplar is one known lure text with its campaign metadata.
type CampaignExemplar struct {
	Text     string
	Campaign string
	Channel  string
	Severity float32 // 0.0-1.0
}

// SeedFile is the YAML format for campaign seed files:
//
//	campaign: credential_harvest
//	channel: email
//	severity: 0.9
//	exemplars:
//	  - "Your mailbox is full, sign in to keep receiving messages"
type SeedFile struct {
	Campaign  string   `yaml:"campaign"`
	Channel   string   `yaml:"channel"`
	Severity  float32  `yaml:"severity"`
	Exemplars []string `yaml:"exemplars"`
}

// LoadSeedDir reads every .yaml/.yml file in dir and flattens the seed files
// into exemplars. Files are processed in name order so loading is stable.
func LoadSeedDir(dir string) ([]CampaignExemplar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []CampaignExemplar
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", name, err)
		}

		var f SeedFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse seed file %s: %w", name, err)
		}
		if f.Campaign == "" {
			return nil, fmt.Errorf("seed file %s has no campaign name", name)
		}
		if f.Severity < 0 || f.Severity > 1 {
			return nil, fmt.Errorf("seed file %s severity %f out of [0,1]", name, f.Severity)
		}

		for _, text := range f.Exemplars {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			out = append(out, CampaignExemplar{
				Text:     text,
				Campaign: f.Campaign,
				Channel:  f.Channel,
				Severity: f.Severity,
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no exemplars found in %s", dir)
	}
	return out, nil
}

// DefaultExemplars is the compiled-in campaign corpus used when no seed
// directory is configured. Campaigns:
// - credential_harvest: fake login and account-security lures
// - invoice_fraud: payment redirection and fake billing
// - delivery_scam: parcel-fee and customs lures
// - prize_scam: lottery and reward bait
// - benign: false positive prevention exemplars
func DefaultExemplars() []CampaignExemplar {
	return []CampaignExemplar{
		{"Your account has been suspended, verify your password to restore access", "credential_harvest", "email", 0.95},
		{"Unusual sign-in activity detected, confirm your identity now", "credential_harvest", "email", 0.9},
		{"Your mailbox is full, sign in to keep receiving messages", "credential_harvest", "email", 0.85},
		{"Your password expires today, click here to reset it", "credential_harvest", "email", 0.9},
		{"We noticed a login from a new device, secure your account immediately", "credential_harvest", "sms", 0.85},

		{"Invoice attached, payment is overdue, settle immediately to avoid penalties", "invoice_fraud", "email", 0.9},
		{"Our banking details have changed, use the new account for this payment", "invoice_fraud", "email", 0.95},
		{"Second reminder: outstanding invoice 4211 requires urgent payment", "invoice_fraud", "email", 0.85},
		{"Purchase order approved, wire transfer the deposit today", "invoice_fraud", "email", 0.85},

		{"Your package could not be delivered, pay the customs fee to release it", "delivery_scam", "sms", 0.9},
		{"Delivery attempt failed, reschedule here within 24 hours", "delivery_scam", "sms", 0.85},
		{"A parcel addressed to you is on hold, confirm your address and pay 1.99", "delivery_scam", "sms", 0.9},

		{"Congratulations, you have been selected to receive a gift card", "prize_scam", "sms", 0.85},
		{"You won the quarterly draw, claim your prize before it expires", "prize_scam", "email", 0.85},
		{"Final notice: your reward points expire tonight, redeem now", "prize_scam", "email", 0.8},

		{"Here are the meeting notes from this morning", "benign", "email", 0.0},
		{"See you at lunch tomorrow", "benign", "sms", 0.0},
		{"The quarterly report is attached for your review", "benign", "email", 0.0},
		{"Can you pick up milk on the way home", "benign", "sms", 0.0},
		{"Thanks for your help with the presentation yesterday", "benign", "email", 0.0},
	}
}
