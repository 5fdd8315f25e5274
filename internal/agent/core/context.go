package core

import "fmt"

type fieldGroup uint8

const (
	groupExtraction fieldGroup = 1 << iota
	groupCost
	groupPerformance
	groupRisk
	groupBrief
)

var groupNames = map[fieldGroup]string{
	groupExtraction:  "extraction",
	groupCost:        "cost_breakdown",
	groupPerformance: "performance",
	groupRisk:        "risks",
	groupBrief:       "final_brief",
}

// errAlreadyWritten signals a second write to a write-once field group.
type errAlreadyWritten struct{ group string }

func (e errAlreadyWritten) Error() string {
	return fmt.Sprintf("comparison context: %s already written", e.group)
}

func (c *ComparisonContext) claim(g fieldGroup) error {
	if c.written&g != 0 {
		return errAlreadyWritten{group: groupNames[g]}
	}
	c.written |= g
	return nil
}

func (c *ComparisonContext) applyExtraction(e Extraction) error {
	if err := c.claim(groupExtraction); err != nil {
		return err
	}
	c.OptionA = e.OptionA
	c.OptionB = e.OptionB
	c.Constraints = append([]string(nil), e.Constraints...)
	c.UseCase = e.UseCase
	c.TeamSize = e.TeamSize
	c.Timeline = e.Timeline
	c.Budget = e.Budget
	c.TechCategory = e.Category
	if c.TechCategory == "" {
		c.TechCategory = CategoryOther
	}
	return nil
}

func (c *ComparisonContext) applyCost(r Result[CostFragment]) error {
	if err := c.claim(groupCost); err != nil {
		return err
	}
	c.Cost = r
	return nil
}

func (c *ComparisonContext) applyPerformance(r Result[PerformanceFragment]) error {
	if err := c.claim(groupPerformance); err != nil {
		return err
	}
	c.Performance = r
	return nil
}

func (c *ComparisonContext) applyRisk(r Result[RiskFragment]) error {
	if err := c.claim(groupRisk); err != nil {
		return err
	}
	c.Risk = r
	return nil
}

func (c *ComparisonContext) applyBrief(brief string) error {
	if err := c.claim(groupBrief); err != nil {
		return err
	}
	c.FinalBrief = brief
	return nil
}

// snapshot returns a copy safe to hand to concurrent readers. Slices and
// pointers are shared; readers must not mutate them.
func (c *ComparisonContext) snapshot() ComparisonContext {
	cp := *c
	cp.written = 0
	return cp
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
