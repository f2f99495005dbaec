package models

// DefaultSequenceName is the name given to the sequence seeded for new workspaces.
const DefaultSequenceName = "Standarduppföljning"

// DefaultSequenceSteps returns the drip seeded as the default sequence of a new workspace.
func DefaultSequenceSteps() []SequenceStep {
	return []SequenceStep{
		{
			StepNumber:      1,
			DelayDays:       0,
			SubjectTemplate: "Tack för din förfrågan om {tjänst}",
			BodyTemplate: "Hej {namn},\n\n" +
				"Tack för att du kontaktade {company_name}! Vi har tagit emot din förfrågan om {tjänst} " +
				"och återkommer med en offert så snart som möjligt.\n\n" +
				"{signatur}",
		},
		{
			StepNumber:      2,
			DelayDays:       2,
			SubjectTemplate: "Har du hunnit titta på vår offert?",
			BodyTemplate: "Hej {namn},\n\n" +
				"Jag ville bara höra om du har hunnit titta på vår offert för {tjänst}. " +
				"Hör gärna av dig om du har några frågor.\n\n" +
				"{signatur}",
		},
		{
			StepNumber:      3,
			DelayDays:       5,
			SubjectTemplate: "Sista påminnelse om {tjänst}",
			BodyTemplate: "Hej {namn},\n\n" +
				"Det här är en sista påminnelse om vår offert. Svara på det här mejlet " +
				"så hjälper vi dig gärna vidare.\n\n" +
				"{signatur}",
		},
	}
}
