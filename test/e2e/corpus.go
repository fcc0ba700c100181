// Package e2e runs a multi-tenant corpus through the full HTTP stack.
package e2e

import "fmt"

// Owners is the number of users the corpus is spread across.
const Owners = 3

// Entry is one corpus document and the user who uploads it.
type Entry struct {
	Key     string
	Title   string
	Content string
	Owner   int64
}

// Case is a question whose answer must cite Key for its owner and nobody else.
type Case struct {
	Query string
	Key   string
	Owner int64
}

// Corpus holds the documents and questions for the end-to-end run.
type Corpus struct {
	Entries []Entry
	Cases   []Case
}

var topics = []struct {
	title   string
	content string
	query   string
}{
	{"Refund Policy", "Customers may request a refund within thirty days of purchase. Refunds are issued to the original payment method.", "refund within thirty days"},
	{"Travel Expenses", "Employees book flights through the travel portal. Hotel receipts must be attached to every expense claim.", "hotel receipts expense claim"},
	{"Onboarding Checklist", "New hires receive a laptop on day one. The onboarding checklist covers badge access and payroll enrollment.", "onboarding checklist badge payroll"},
	{"Kubernetes Runbook", "Kubernetes pods restart automatically after a crash. Check pod logs with kubectl before paging the on-call engineer.", "kubernetes pods kubectl logs"},
	{"Backup Schedule", "Database backups run nightly at two o'clock. Snapshots are retained for fourteen days in cold storage.", "nightly database backups snapshots"},
	{"Password Rules", "Passwords need at least twelve characters. Rotation is required every ninety days for privileged accounts.", "passwords twelve characters rotation"},
	{"Vacation Policy", "Full-time staff accrue twenty vacation days per year. Unused vacation carries over up to five days.", "vacation days carry over"},
	{"Incident Response", "Declare an incident in the status channel. The incident commander assigns a scribe and posts hourly updates.", "incident commander scribe updates"},
	{"Coffee Machine", "The espresso machine on floor three needs descaling monthly. Beans are ordered from the roaster every friday.", "espresso machine descaling beans"},
	{"Parking Garage", "Visitor parking is on level two of the garage. Employees park on levels three through six with a permit.", "visitor parking garage permit"},
	{"Release Process", "Releases are cut from the main branch on tuesday. A canary rollout precedes the full deployment.", "canary rollout main branch release"},
	{"Security Training", "Annual phishing awareness training is mandatory. Completion certificates are stored by the compliance team.", "phishing awareness training certificates"},
	{"Invoice Approval", "Invoices above five thousand dollars need director approval. Finance pays approved invoices within net thirty terms.", "invoices director approval finance"},
	{"Printer Setup", "Add the office printer by its hostname. Color printing requires a badge tap at the device.", "office printer hostname color"},
	{"Data Retention", "Customer records are deleted seven years after account closure. Legal holds suspend the retention schedule.", "customer records legal holds retention"},
	{"Remote Work", "Remote employees receive a home office stipend. Core collaboration hours run from ten to three.", "remote home office stipend"},
	{"Laptop Encryption", "Full disk encryption is enabled on every company laptop. Recovery keys are escrowed with the helpdesk.", "disk encryption recovery keys helpdesk"},
	{"Meeting Rooms", "Book meeting rooms through the calendar. Rooms left empty for fifteen minutes are released automatically.", "book meeting rooms calendar released"},
}

// BuildCorpus spreads the topics round-robin across Owners users and derives one case per topic.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, t := range topics {
		e := Entry{
			Key:     fmt.Sprintf("doc-%02d", i+1),
			Title:   t.title,
			Content: t.content,
			Owner:   int64(i%Owners) + 1,
		}
		c.Entries = append(c.Entries, e)
		c.Cases = append(c.Cases, Case{Query: t.query, Key: e.Key, Owner: e.Owner})
	}
	return c
}

// ByContent returns the entry with the given content.
func (c *Corpus) ByContent(content string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Content == content {
			return e, true
		}
	}
	return Entry{}, false
}
